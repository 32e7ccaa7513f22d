package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WilliamHangXu/EasyOH/internal/application"
	"github.com/WilliamHangXu/EasyOH/internal/persistence"
)

func TestRosterInviteSignUpAndDeactivate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newServiceEnv(t)
	roster := env.services.Roster
	auth := env.services.Auth

	_, err := roster.InviteTA(ctx, env.ta, "new@example.edu")
	assert.ErrorIs(t, err, application.ErrUnauthorized)

	_, err = roster.InviteTA(ctx, env.instructor, "not-an-email")
	var vErr *application.ValidationError
	require.ErrorAs(t, err, &vErr)

	entry, err := roster.InviteTA(ctx, env.instructor, " New@Example.edu ")
	require.NoError(t, err)
	assert.Equal(t, "new@example.edu", entry.Email)
	assert.Equal(t, persistence.RoleTA, entry.Role)

	user, err := auth.SignUp(ctx, application.SignUpParams{
		Email: "new@example.edu", Password: "hunter2hunter2", FirstName: "Nia", LastName: "Ward",
	})
	require.NoError(t, err)
	assert.Equal(t, persistence.RoleTA, user.Role)

	name, err := roster.DisplayName(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nia Ward", name)

	tas, err := roster.ListTAs(ctx, env.instructor)
	require.NoError(t, err)
	require.Len(t, tas, 3)
	assert.Equal(t, "new@example.edu", tas[0].Email)

	require.NoError(t, roster.DeactivateTA(ctx, env.instructor, user.ID))
	_, err = auth.Authenticate(ctx, application.AuthenticateParams{Email: "new@example.edu", Password: "hunter2hunter2"})
	assert.ErrorIs(t, err, application.ErrAccountDisabled)

	_, err = env.harness.AuthorizedEmails.GetAuthorizedEmail(ctx, "new@example.edu")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	_, err = roster.InviteTA(ctx, env.instructor, "new@example.edu")
	require.NoError(t, err)
	result, err := auth.Authenticate(ctx, application.AuthenticateParams{Email: "new@example.edu", Password: "hunter2hunter2"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.Principal.UserID)

	err = roster.DeactivateTA(ctx, env.instructor, env.instructor.UserID)
	assert.ErrorAs(t, err, &vErr)
	assert.ErrorIs(t, roster.DeactivateTA(ctx, env.instructor, "missing"), application.ErrNotFound)
}

func TestRosterEnsureInstructor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newServiceEnv(t)

	require.NoError(t, env.services.Roster.EnsureInstructor(ctx, "Head@Example.edu"))
	require.NoError(t, env.services.Roster.EnsureInstructor(ctx, "head@example.edu"))

	entry, err := env.harness.AuthorizedEmails.GetAuthorizedEmail(ctx, "head@example.edu")
	require.NoError(t, err)
	assert.Equal(t, persistence.RoleInstructor, entry.Role)
	assert.Equal(t, application.BootstrapInviter, entry.InvitedBy)

	user, err := env.services.Auth.SignUp(ctx, application.SignUpParams{
		Email: "head@example.edu", Password: "long-password", FirstName: "Head", LastName: "Prof",
	})
	require.NoError(t, err)
	assert.Equal(t, persistence.RoleInstructor, user.Role)

	var vErr *application.ValidationError
	assert.ErrorAs(t, env.services.Roster.EnsureInstructor(ctx, ""), &vErr)
}

func TestAuthSessionsAgainstSQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newServiceEnv(t)
	_, err := env.services.Roster.InviteTA(ctx, env.instructor, "sess@example.edu")
	require.NoError(t, err)
	_, err = env.services.Auth.SignUp(ctx, application.SignUpParams{
		Email: "sess@example.edu", Password: "password123", FirstName: "S", LastName: "E",
	})
	require.NoError(t, err)

	result, err := env.services.Auth.Authenticate(ctx, application.AuthenticateParams{Email: "sess@example.edu", Password: "password123"})
	require.NoError(t, err)

	principal, err := env.services.Auth.ValidateSession(ctx, result.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, "sess@example.edu", principal.Email)

	require.NoError(t, env.services.Auth.RevokeSession(ctx, result.Session.Token))
	_, err = env.services.Auth.ValidateSession(ctx, result.Session.Token)
	assert.ErrorIs(t, err, application.ErrSessionRevoked)

	removed, err := env.services.Auth.PurgeExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
