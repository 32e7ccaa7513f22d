package application

import (
	"errors"
	"fmt"
	"testing"

	"github.com/WilliamHangXu/EasyOH/internal/officehour"
	"github.com/WilliamHangXu/EasyOH/internal/persistence"
)

func TestMapRepoError(t *testing.T) {
	t.Parallel()

	if mapRepoError(nil) != nil {
		t.Fatalf("expected nil to stay nil")
	}
	if err := mapRepoError(fmt.Errorf("get: %w", persistence.ErrNotFound)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mapRepoError(persistence.ErrDuplicate); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	other := errors.New("disk full")
	if err := mapRepoError(other); err != other {
		t.Fatalf("expected unrelated errors to pass through, got %v", err)
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	vErr := &ValidationError{}
	vErr.Add("field", "bad")

	cases := map[string]error{
		"":                     nil,
		"unauthenticated":      &officehour.UnauthenticatedError{Missing: []string{"email"}},
		"unauthorized":         ErrUnauthorized,
		"not_found":            fmt.Errorf("wrap: %w", ErrNotFound),
		"already_exists":       ErrAlreadyExists,
		"invalid_credentials":  ErrInvalidCredentials,
		"account_disabled":     ErrAccountDisabled,
		"email_not_authorized": ErrEmailNotAuthorized,
		"session_expired":      ErrSessionExpired,
		"session_revoked":      ErrSessionRevoked,
		"invalid_transition":   officehour.ErrInvalidTransition,
		"validation":           vErr,
		"malformed_record":     &officehour.MalformedRecordError{RecordID: "oh-1", Reason: "bad"},
		"unexpected":           errors.New("boom"),
	}
	for want, err := range cases {
		if got := ErrorKind(err); got != want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", err, got, want)
		}
	}
}
