package persistence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WilliamHangXu/EasyOH/internal/officehour"
	"github.com/WilliamHangXu/EasyOH/internal/persistence"
	"github.com/WilliamHangXu/EasyOH/internal/testfixtures"
)

func TestUserRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)

	user := testfixtures.NewUserFixture(
		testfixtures.WithUserID("user-1"),
		testfixtures.WithUserEmail("Alice@Example.edu"),
		testfixtures.WithUserName("Alice", "Smith"),
	).Persistence()
	require.NoError(t, harness.Users.CreateUser(ctx, user))

	fetched, err := harness.Users.GetUserByEmail(ctx, "ALICE@example.edu")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.edu", fetched.Email)
	assert.Equal(t, "Alice Smith", fetched.DisplayName())
	assert.True(t, fetched.Active)
	assert.Equal(t, persistence.RoleTA, fetched.Role)

	fetched.Active = false
	fetched.LastName = "Jones"
	require.NoError(t, harness.Users.UpdateUser(ctx, fetched))

	again, err := harness.Users.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, again.Active)
	assert.Equal(t, "Jones", again.LastName)

	duplicate := testfixtures.NewUserFixture(testfixtures.WithUserEmail("alice@example.edu")).Persistence()
	assert.ErrorIs(t, harness.Users.CreateUser(ctx, duplicate), persistence.ErrDuplicate)

	_, err = harness.Users.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	missing := again
	missing.ID = "missing"
	assert.ErrorIs(t, harness.Users.UpdateUser(ctx, missing), persistence.ErrNotFound)

	instructor := testfixtures.NewUserFixture(testfixtures.WithUserRole(persistence.RoleInstructor)).Persistence()
	require.NoError(t, harness.Users.CreateUser(ctx, instructor))
	tas, err := harness.Users.ListUsersByRole(ctx, persistence.RoleTA)
	require.NoError(t, err)
	require.Len(t, tas, 1)
	assert.Equal(t, "user-1", tas[0].ID)
}

func TestAuthorizedEmailRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)

	require.NoError(t, harness.AuthorizedEmails.AuthorizeEmail(ctx, persistence.AuthorizedEmail{
		Email: "TA@Example.edu", Role: persistence.RoleTA, InvitedBy: "inst-1",
	}))
	require.NoError(t, harness.AuthorizedEmails.AuthorizeEmail(ctx, persistence.AuthorizedEmail{
		Email: "ta@example.edu", Role: persistence.RoleInstructor, InvitedBy: "inst-2",
	}))

	entry, err := harness.AuthorizedEmails.GetAuthorizedEmail(ctx, "ta@EXAMPLE.edu")
	require.NoError(t, err)
	assert.Equal(t, persistence.RoleInstructor, entry.Role)
	assert.Equal(t, "inst-2", entry.InvitedBy)

	require.NoError(t, harness.AuthorizedEmails.RevokeAuthorizedEmail(ctx, "ta@example.edu"))
	_, err = harness.AuthorizedEmails.GetAuthorizedEmail(ctx, "ta@example.edu")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	assert.ErrorIs(t, harness.AuthorizedEmails.RevokeAuthorizedEmail(ctx, "ta@example.edu"), persistence.ErrNotFound)

	err = harness.AuthorizedEmails.AuthorizeEmail(ctx, persistence.AuthorizedEmail{Email: "x@example.edu", Role: "student"})
	assert.ErrorIs(t, err, persistence.ErrConstraintViolation)
}

func TestOfficeHourRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)

	owner := testfixtures.NewUserFixture(testfixtures.WithUserID("ta-1")).Persistence()
	inactive := testfixtures.NewUserFixture(testfixtures.WithUserID("ta-2"), testfixtures.WithUserInactive()).Persistence()
	require.NoError(t, harness.Users.CreateUser(ctx, owner))
	require.NoError(t, harness.Users.CreateUser(ctx, inactive))

	skipped := time.Date(2024, time.January, 9, 0, 0, 0, 0, time.UTC)
	weekly := testfixtures.NewRecurringOfficeHour(time.Tuesday,
		testfixtures.WithOfficeHourID("oh-weekly"),
		testfixtures.WithOwner("ta-1", "ta-1@example.edu"),
		testfixtures.WithExceptions(skipped),
	)
	single := testfixtures.NewOneTimeOfficeHour(time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC),
		testfixtures.WithOfficeHourID("oh-single"),
		testfixtures.WithOwner("ta-2", "ta-2@example.edu"),
	)
	require.NoError(t, harness.OfficeHours.CreateOfficeHour(ctx, weekly))
	require.NoError(t, harness.OfficeHours.CreateOfficeHour(ctx, single))
	assert.ErrorIs(t, harness.OfficeHours.CreateOfficeHour(ctx, single), persistence.ErrDuplicate)

	t.Run("round trips both shapes", func(t *testing.T) {
		got, err := harness.OfficeHours.GetOfficeHour(ctx, "oh-weekly")
		require.NoError(t, err)
		assert.True(t, got.IsRecurring)
		assert.Equal(t, int(time.Tuesday), got.DayOfWeek)
		assert.True(t, weekly.DTStart.Equal(got.DTStart))
		require.Len(t, got.Exceptions, 1)
		assert.True(t, skipped.Equal(got.Exceptions[0]))
		assert.True(t, got.TmpDate.IsZero())

		one, err := harness.OfficeHours.GetOfficeHour(ctx, "oh-single")
		require.NoError(t, err)
		assert.False(t, one.IsRecurring)
		assert.Equal(t, officehour.NoDay, one.DayOfWeek)
		assert.Equal(t, "2024-12-01T10:00:00Z", one.TmpStartTime.Format(time.RFC3339))
		assert.NotNil(t, one.Exceptions)
		assert.Empty(t, one.Exceptions)
	})

	t.Run("filters by owner and activity", func(t *testing.T) {
		all, err := harness.OfficeHours.ListOfficeHours(ctx, persistence.OfficeHourFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		mine, err := harness.OfficeHours.ListOfficeHours(ctx, persistence.OfficeHourFilter{OwnerIDs: []string{"ta-2"}})
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, "oh-single", mine[0].ID)

		active, err := harness.OfficeHours.ListOfficeHours(ctx, persistence.OfficeHourFilter{ActiveOwnersOnly: true})
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "oh-weekly", active[0].ID)
		assert.Len(t, active[0].Exceptions, 1)
	})

	t.Run("adds exceptions idempotently", func(t *testing.T) {
		next := time.Date(2024, time.January, 16, 0, 0, 0, 0, time.UTC)
		require.NoError(t, harness.OfficeHours.AddException(ctx, "oh-weekly", next))
		require.NoError(t, harness.OfficeHours.AddException(ctx, "oh-weekly", next))

		got, err := harness.OfficeHours.GetOfficeHour(ctx, "oh-weekly")
		require.NoError(t, err)
		assert.Len(t, got.Exceptions, 2)

		assert.ErrorIs(t, harness.OfficeHours.AddException(ctx, "missing", next), persistence.ErrNotFound)
	})

	t.Run("deletes records", func(t *testing.T) {
		require.NoError(t, harness.OfficeHours.DeleteOfficeHour(ctx, "oh-single"))
		_, err := harness.OfficeHours.GetOfficeHour(ctx, "oh-single")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
		assert.ErrorIs(t, harness.OfficeHours.DeleteOfficeHour(ctx, "oh-single"), persistence.ErrNotFound)
	})
}

func TestChangeRequestRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)

	weekly := testfixtures.NewRecurringOfficeHour(time.Wednesday, testfixtures.WithOwner("ta-1", "ta-1@example.edu"))
	create := testfixtures.NewChangeRequest(weekly, testfixtures.WithChangeRequestID("cr-create"))
	target := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	del := testfixtures.NewChangeRequest(weekly,
		testfixtures.WithChangeRequestID("cr-delete"),
		testfixtures.WithTarget(officehour.OperationDelete, "oh-x", target),
		testfixtures.WithRequester("ta-2", "Bea"),
	)
	require.NoError(t, harness.ChangeRequests.CreateChangeRequest(ctx, create))
	require.NoError(t, harness.ChangeRequests.CreateChangeRequest(ctx, del))

	got, err := harness.ChangeRequests.GetChangeRequest(ctx, "cr-create")
	require.NoError(t, err)
	assert.Equal(t, officehour.StatusPending, got.Status)
	assert.Equal(t, officehour.OperationCreate, got.Operation)
	assert.True(t, got.PrimaryOH.IsRecurring)
	assert.Equal(t, int(time.Wednesday), got.PrimaryOH.DayOfWeek)
	assert.True(t, weekly.DTStart.Equal(got.PrimaryOH.DTStart))
	assert.Nil(t, got.ProcessedAt)

	pending, err := harness.ChangeRequests.ListChangeRequests(ctx, persistence.ChangeRequestFilter{Status: officehour.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "cr-create", pending[0].ID)

	approved, err := got.Transition(officehour.StatusApproved, "inst-1", "ok", testfixtures.ReferenceTime())
	require.NoError(t, err)
	require.NoError(t, harness.ChangeRequests.UpdateChangeRequest(ctx, approved))

	pending, err = harness.ChangeRequests.ListChangeRequests(ctx, persistence.ChangeRequestFilter{Status: officehour.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "cr-delete", pending[0].ID)
	assert.True(t, target.Equal(pending[0].TargetDate))

	mine, err := harness.ChangeRequests.ListChangeRequests(ctx, persistence.ChangeRequestFilter{RequesterID: "ta-1"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, officehour.StatusApproved, mine[0].Status)
	assert.Equal(t, "ok", mine[0].InstructorNote)
	require.NotNil(t, mine[0].ProcessedAt)
	assert.True(t, testfixtures.ReferenceTime().Equal(*mine[0].ProcessedAt))

	_, err = harness.ChangeRequests.GetChangeRequest(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestWithTransactionRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	boom := errors.New("boom")

	err := harness.WithTransaction(ctx, func(tx persistence.Tx) error {
		oh := testfixtures.NewOneTimeOfficeHour(testfixtures.ReferenceTime(), testfixtures.WithOfficeHourID("oh-tx"))
		if err := tx.OfficeHours().CreateOfficeHour(ctx, oh); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = harness.OfficeHours.GetOfficeHour(ctx, "oh-tx")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	require.NoError(t, harness.WithTransaction(ctx, func(tx persistence.Tx) error {
		oh := testfixtures.NewOneTimeOfficeHour(testfixtures.ReferenceTime(), testfixtures.WithOfficeHourID("oh-tx"))
		return tx.OfficeHours().CreateOfficeHour(ctx, oh)
	}))
	_, err = harness.OfficeHours.GetOfficeHour(ctx, "oh-tx")
	assert.NoError(t, err)
}

func TestSessionRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)

	user := testfixtures.NewUserFixture(testfixtures.WithUserID("ta-s")).Persistence()
	require.NoError(t, harness.Users.CreateUser(ctx, user))

	live := testfixtures.NewSession("ta-s")
	expired := testfixtures.NewSession("ta-s")
	expired.ExpiresAt = testfixtures.ReferenceTime().Add(-time.Minute)
	_, err := harness.Sessions.CreateSession(ctx, live)
	require.NoError(t, err)
	_, err = harness.Sessions.CreateSession(ctx, expired)
	require.NoError(t, err)

	dup := testfixtures.NewSession("ta-s")
	dup.Token = live.Token
	_, err = harness.Sessions.CreateSession(ctx, dup)
	assert.ErrorIs(t, err, persistence.ErrDuplicate)

	got, err := harness.Sessions.GetSession(ctx, live.Token)
	require.NoError(t, err)
	assert.Equal(t, "ta-s", got.UserID)
	assert.Nil(t, got.RevokedAt)

	removed, err := harness.Sessions.DeleteExpiredSessions(ctx, testfixtures.ReferenceTime())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	revoked, err := harness.Sessions.RevokeSession(ctx, live.Token, testfixtures.ReferenceTime())
	require.NoError(t, err)
	require.NotNil(t, revoked.RevokedAt)

	removed, err = harness.Sessions.DeleteExpiredSessions(ctx, testfixtures.ReferenceTime())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = harness.Sessions.GetSession(ctx, live.Token)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}
