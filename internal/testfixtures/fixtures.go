package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/WilliamHangXu/EasyOH/internal/officehour"
	"github.com/WilliamHangXu/EasyOH/internal/persistence"
)

var (
	userCounter          uint64
	officeHourCounter    uint64
	changeRequestCounter uint64
	sessionCounter       uint64
)

// Monday.
var referenceTime = time.Date(2024, time.January, 1, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic staff account.
type UserFixture struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	Role         persistence.Role
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic TA fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	fixture := UserFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.edu", id),
		FirstName:    "TA",
		LastName:     fmt.Sprintf("%03d", idx),
		Role:         persistence.RoleTA,
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		Active:       true,
		CreatedAt:    referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) { f.ID = id }
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) { f.Email = email }
}

// WithUserName overrides the generated first and last name.
func WithUserName(first, last string) UserOption {
	return func(f *UserFixture) {
		f.FirstName = first
		f.LastName = last
	}
}

// WithUserRole overrides the role.
func WithUserRole(role persistence.Role) UserOption {
	return func(f *UserFixture) { f.Role = role }
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) { f.PasswordHash = hash }
}

// WithUserInactive marks the account as deactivated.
func WithUserInactive() UserOption {
	return func(f *UserFixture) { f.Active = false }
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		FirstName:    f.FirstName,
		LastName:     f.LastName,
		Role:         f.Role,
		PasswordHash: f.PasswordHash,
		Active:       f.Active,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.CreatedAt,
	}
}

// Actor returns the acting user for materializer calls.
func (f UserFixture) Actor() officehour.Actor {
	return officehour.Actor{UserID: f.ID, Email: f.Email}
}

// -------------------------- Office hour fixtures --------------------------

// OfficeHourOption configures a generated office hour.
type OfficeHourOption func(*officehour.OfficeHour)

// NewRecurringOfficeHour returns a weekly record on day owned by user-001.
func NewRecurringOfficeHour(day time.Weekday, opts ...OfficeHourOption) officehour.OfficeHour {
	idx := atomic.AddUint64(&officeHourCounter, 1)
	oh := officehour.OfficeHour{
		ID:             fmt.Sprintf("oh-%03d", idx),
		OwnerID:        "user-001",
		CreatedByEmail: "user-001@example.edu",
		CreatedAt:      referenceTime.Add(-time.Duration(idx) * time.Hour),
		IsRecurring:    true,
		DayOfWeek:      int(day),
		StartTime:      "14:00",
		EndTime:        "15:00",
		Location:       officehour.DefaultLocation,
		DTStart:        time.Date(2023, time.September, 4, 14, 0, 0, 0, time.UTC),
		Exceptions:     []time.Time{},
	}
	for _, opt := range opts {
		opt(&oh)
	}
	return oh
}

// NewOneTimeOfficeHour returns a single slot on date from 10:00 to 11:00.
func NewOneTimeOfficeHour(date time.Time, opts ...OfficeHourOption) officehour.OfficeHour {
	idx := atomic.AddUint64(&officeHourCounter, 1)
	day := officehour.StartOfDay(date, time.UTC)
	oh := officehour.OfficeHour{
		ID:             fmt.Sprintf("oh-%03d", idx),
		OwnerID:        "user-001",
		CreatedByEmail: "user-001@example.edu",
		CreatedAt:      referenceTime.Add(-time.Duration(idx) * time.Hour),
		DayOfWeek:      officehour.NoDay,
		StartTime:      "10:00",
		EndTime:        "11:00",
		Location:       officehour.DefaultLocation,
		TmpDate:        day,
		TmpStartTime:   day.Add(10 * time.Hour),
		TmpEndTime:     day.Add(11 * time.Hour),
	}
	for _, opt := range opts {
		opt(&oh)
	}
	return oh
}

// WithOfficeHourID overrides the generated id.
func WithOfficeHourID(id string) OfficeHourOption {
	return func(oh *officehour.OfficeHour) { oh.ID = id }
}

// WithOwner sets the owner id and email.
func WithOwner(id, email string) OfficeHourOption {
	return func(oh *officehour.OfficeHour) {
		oh.OwnerID = id
		oh.CreatedByEmail = email
	}
}

// WithTimes overrides StartTime and EndTime. One-time slots are recomposed.
func WithTimes(start, end string) OfficeHourOption {
	return func(oh *officehour.OfficeHour) {
		oh.StartTime = start
		oh.EndTime = end
		if !oh.IsRecurring {
			if s, e, ok := oh.ComposeSlot(oh.TmpDate, time.UTC); ok {
				oh.TmpStartTime, oh.TmpEndTime = s, e
			}
		}
	}
}

// WithLocation overrides the room.
func WithLocation(location string) OfficeHourOption {
	return func(oh *officehour.OfficeHour) { oh.Location = location }
}

// WithExceptions sets the excluded dates.
func WithExceptions(dates ...time.Time) OfficeHourOption {
	return func(oh *officehour.OfficeHour) {
		oh.Exceptions = append([]time.Time{}, dates...)
	}
}

// ------------------------ Change request fixtures ------------------------

// ChangeRequestOption configures a generated change request.
type ChangeRequestOption func(*officehour.ChangeRequest)

// NewChangeRequest returns a pending create request for primary.
func NewChangeRequest(primary officehour.OfficeHour, opts ...ChangeRequestOption) officehour.ChangeRequest {
	idx := atomic.AddUint64(&changeRequestCounter, 1)
	primary.ID = ""
	cr := officehour.ChangeRequest{
		ID:            fmt.Sprintf("cr-%03d", idx),
		RequesterID:   primary.OwnerID,
		RequesterName: "TA " + primary.OwnerID,
		Operation:     officehour.OperationCreate,
		PrimaryOH:     primary,
		Status:        officehour.StatusPending,
		SubmittedAt:   referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&cr)
	}
	return cr
}

// WithChangeRequestID overrides the generated id.
func WithChangeRequestID(id string) ChangeRequestOption {
	return func(cr *officehour.ChangeRequest) { cr.ID = id }
}

// WithTarget turns the request into an edit or delete of target on date.
func WithTarget(operation officehour.Operation, targetID string, date time.Time) ChangeRequestOption {
	return func(cr *officehour.ChangeRequest) {
		cr.Operation = operation
		cr.TargetID = targetID
		cr.TargetDate = date
	}
}

// WithRequester overrides the requester.
func WithRequester(id, name string) ChangeRequestOption {
	return func(cr *officehour.ChangeRequest) {
		cr.RequesterID = id
		cr.RequesterName = name
	}
}

// --------------------------- Session fixtures ----------------------------

// NewSession returns a session for userID expiring a day after ReferenceTime.
func NewSession(userID string) persistence.Session {
	idx := atomic.AddUint64(&sessionCounter, 1)
	return persistence.Session{
		ID:        fmt.Sprintf("session-%03d", idx),
		UserID:    userID,
		Token:     fmt.Sprintf("token-%03d", idx),
		ExpiresAt: referenceTime.Add(24 * time.Hour),
		CreatedAt: referenceTime,
	}
}
