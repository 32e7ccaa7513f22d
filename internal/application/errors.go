package application

import (
	"errors"

	"github.com/WilliamHangXu/EasyOH/internal/officehour"
	"github.com/WilliamHangXu/EasyOH/internal/persistence"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique resource is created twice.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned for unknown emails, wrong passwords and unknown tokens.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when a deactivated account signs in.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrEmailNotAuthorized is returned when signup is attempted with an email nobody invited.
	ErrEmailNotAuthorized = errors.New("application: email not authorized")
	// ErrSessionExpired is returned when a session token is past its expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when a session token was logged out.
	ErrSessionRevoked = errors.New("application: session revoked")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError = officehour.ValidationError

// mapRepoError translates persistence sentinels into application sentinels.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	}
	return err
}
