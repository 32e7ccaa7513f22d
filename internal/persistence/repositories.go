package persistence

import (
	"context"
	"time"

	"github.com/WilliamHangXu/EasyOH/internal/officehour"
)

// UserRepository exposes CRUD operations for staff accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsersByRole(ctx context.Context, role Role) ([]User, error)
}

// AuthorizedEmailRepository stores the signup allow list.
type AuthorizedEmailRepository interface {
	// AuthorizeEmail inserts or replaces the entry for entry.Email.
	AuthorizeEmail(ctx context.Context, entry AuthorizedEmail) error
	GetAuthorizedEmail(ctx context.Context, email string) (AuthorizedEmail, error)
	RevokeAuthorizedEmail(ctx context.Context, email string) error
}

// OfficeHourFilter narrows office hour queries. Zero values match everything.
type OfficeHourFilter struct {
	OwnerIDs         []string
	ActiveOwnersOnly bool
}

// OfficeHourRepository stores office hour records and their exception dates.
type OfficeHourRepository interface {
	CreateOfficeHour(ctx context.Context, oh officehour.OfficeHour) error
	GetOfficeHour(ctx context.Context, id string) (officehour.OfficeHour, error)
	ListOfficeHours(ctx context.Context, filter OfficeHourFilter) ([]officehour.OfficeHour, error)
	DeleteOfficeHour(ctx context.Context, id string) error
	// AddException records one excluded date. Adding the same date twice is a no-op.
	AddException(ctx context.Context, officeHourID string, at time.Time) error
}

// ChangeRequestFilter narrows change request queries. Zero values match everything.
type ChangeRequestFilter struct {
	RequesterID string
	Status      officehour.Status
}

// ChangeRequestRepository stores change requests awaiting or past review.
type ChangeRequestRepository interface {
	CreateChangeRequest(ctx context.Context, cr officehour.ChangeRequest) error
	GetChangeRequest(ctx context.Context, id string) (officehour.ChangeRequest, error)
	UpdateChangeRequest(ctx context.Context, cr officehour.ChangeRequest) error
	ListChangeRequests(ctx context.Context, filter ChangeRequestFilter) ([]officehour.ChangeRequest, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error)
}

// Tx exposes the repositories that share one transaction.
type Tx interface {
	OfficeHours() OfficeHourRepository
	ChangeRequests() ChangeRequestRepository
}

// Transactor runs fn inside a transaction, committing when fn returns nil.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(tx Tx) error) error
}
