package application

import (
	"strings"

	"github.com/WilliamHangXu/EasyOH/internal/officehour"
	"github.com/WilliamHangXu/EasyOH/internal/persistence"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Email  string
	Role   persistence.Role
}

// IsInstructor reports whether the principal may review requests and manage the roster.
func (p Principal) IsInstructor() bool {
	return p.Role == persistence.RoleInstructor
}

// Actor returns the principal as the acting user for materialization.
func (p Principal) Actor() officehour.Actor {
	return officehour.Actor{UserID: p.UserID, Email: p.Email}
}

func (p Principal) authenticated() error {
	if strings.TrimSpace(p.UserID) == "" {
		return &officehour.UnauthenticatedError{Missing: []string{"user id"}}
	}
	return nil
}

// owns reports whether the principal may manage records owned by ownerID.
func (p Principal) owns(ownerID string) bool {
	return p.IsInstructor() || p.UserID == ownerID
}

// SignUpParams captures the data required to create an account from an invite.
type SignUpParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User      persistence.User
	Session   persistence.Session
	Principal Principal
}

// OccurrenceEditParams identifies one occurrence of a record and its replacement slot.
type OccurrenceEditParams struct {
	OfficeHourID string
	// Date is YYYY-MM-DD in the nominal zone.
	Date        string
	Replacement officehour.TemporaryRequest
}

// OccurrenceDeleteParams identifies one occurrence of a record to remove.
type OccurrenceDeleteParams struct {
	OfficeHourID string
	Date         string
	Note         string
}
