package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/WilliamHangXu/EasyOH/internal/persistence"
)

// BootstrapInviter is recorded as the inviter of instructors authorized at startup.
const BootstrapInviter = "bootstrap"

// RosterService manages the signup allow list and TA accounts.
type RosterService struct {
	users      persistence.UserRepository
	authorized persistence.AuthorizedEmailRepository
	now        func() time.Time
	logger     *slog.Logger
}

// NewRosterService wires dependencies for the roster service.
func NewRosterService(users persistence.UserRepository, authorized persistence.AuthorizedEmailRepository, now func() time.Time, logger *slog.Logger) *RosterService {
	if now == nil {
		now = time.Now
	}
	return &RosterService{users: users, authorized: authorized, now: now, logger: defaultLogger(logger)}
}

func (s *RosterService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RosterService", operation, attrs...)
}

// InviteTA authorizes email to sign up as a TA. A deactivated TA with that email
// is reactivated.
func (s *RosterService) InviteTA(ctx context.Context, principal Principal, email string) (entry persistence.AuthorizedEmail, err error) {
	if s == nil {
		err = fmt.Errorf("RosterService is nil")
		return
	}
	normalized := persistence.NormalizeEmail(email)
	logger := s.loggerWith(ctx, "InviteTA", "principal_id", principal.UserID, "email", normalized)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "invite failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "email authorized")
	}()

	if err = principal.authenticated(); err != nil {
		return
	}
	if !principal.IsInstructor() {
		err = ErrUnauthorized
		return
	}
	if vErr := validateEmail(normalized); vErr.HasErrors() {
		err = vErr
		return
	}

	entry = persistence.AuthorizedEmail{
		Email:     normalized,
		Role:      persistence.RoleTA,
		InvitedBy: principal.UserID,
		CreatedAt: s.now(),
	}
	if err = s.authorized.AuthorizeEmail(ctx, entry); err != nil {
		return
	}

	existing, lookupErr := s.users.GetUserByEmail(ctx, normalized)
	switch {
	case errors.Is(lookupErr, persistence.ErrNotFound):
	case lookupErr != nil:
		err = lookupErr
	case !existing.Active && existing.Role == persistence.RoleTA:
		existing.Active = true
		existing.UpdatedAt = s.now()
		err = mapRepoError(s.users.UpdateUser(ctx, existing))
	}
	return
}

// ListTAs returns TA accounts ordered by email.
func (s *RosterService) ListTAs(ctx context.Context, principal Principal) ([]persistence.User, error) {
	if s == nil {
		return nil, fmt.Errorf("RosterService is nil")
	}
	if err := principal.authenticated(); err != nil {
		return nil, err
	}
	if !principal.IsInstructor() {
		return nil, ErrUnauthorized
	}

	users, err := s.users.ListUsersByRole(ctx, persistence.RoleTA)
	if err != nil {
		return nil, err
	}

	out := make([]persistence.User, len(users))
	copy(out, users)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Email == out[j].Email {
			return out[i].ID < out[j].ID
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

// DeactivateTA disables a TA account and withdraws its invite. The TA's office
// hours drop out of schedules and the calendar feed.
func (s *RosterService) DeactivateTA(ctx context.Context, principal Principal, userID string) (err error) {
	if s == nil {
		return fmt.Errorf("RosterService is nil")
	}
	logger := s.loggerWith(ctx, "DeactivateTA", "principal_id", principal.UserID, "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "deactivation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "ta deactivated")
	}()

	if err = principal.authenticated(); err != nil {
		return
	}
	if !principal.IsInstructor() {
		return ErrUnauthorized
	}

	user, getErr := s.users.GetUser(ctx, userID)
	if getErr != nil {
		return mapRepoError(getErr)
	}
	if user.Role != persistence.RoleTA {
		vErr := &ValidationError{}
		vErr.Add("user_id", "only TA accounts can be deactivated")
		return vErr
	}

	user.Active = false
	user.UpdatedAt = s.now()
	if err = s.users.UpdateUser(ctx, user); err != nil {
		return mapRepoError(err)
	}
	if revokeErr := s.authorized.RevokeAuthorizedEmail(ctx, user.Email); revokeErr != nil && !errors.Is(revokeErr, persistence.ErrNotFound) {
		return revokeErr
	}
	return nil
}

// DisplayName returns "First Last" for userID, or the email when no name is stored.
func (s *RosterService) DisplayName(ctx context.Context, userID string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("RosterService is nil")
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return "", mapRepoError(err)
	}
	if name := user.DisplayName(); name != "" {
		return name, nil
	}
	return user.Email, nil
}

// EnsureInstructor authorizes email to sign up as an instructor. It is run at startup.
func (s *RosterService) EnsureInstructor(ctx context.Context, email string) error {
	if s == nil {
		return fmt.Errorf("RosterService is nil")
	}
	normalized := persistence.NormalizeEmail(email)
	if vErr := validateEmail(normalized); vErr.HasErrors() {
		return vErr
	}
	if existing, err := s.authorized.GetAuthorizedEmail(ctx, normalized); err == nil && existing.Role == persistence.RoleInstructor {
		return nil
	}
	err := s.authorized.AuthorizeEmail(ctx, persistence.AuthorizedEmail{
		Email:     normalized,
		Role:      persistence.RoleInstructor,
		InvitedBy: BootstrapInviter,
		CreatedAt: s.now(),
	})
	if err != nil {
		return err
	}
	s.loggerWith(ctx, "EnsureInstructor", "email", normalized).InfoContext(ctx, "instructor authorized")
	return nil
}

func validateEmail(email string) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(email) == "" {
		vErr.Add("email", "email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		vErr.Add("email", "email is invalid")
	}
	return vErr
}
