package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/WilliamHangXu/EasyOH/internal/persistence"
)

// AuthService coordinates signup, login and session validation.
type AuthService struct {
	users          persistence.UserRepository
	authorized     persistence.AuthorizedEmailRepository
	sessions       persistence.SessionRepository
	hashPassword   PasswordHasher
	verifyPassword PasswordVerifier
	idGenerator    func() string
	tokenGenerator func() string
	now            func() time.Time
	sessionTTL     time.Duration
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService. Nil functions fall back to argon2id
// hashing, uuid identifiers and time.Now.
func NewAuthService(users persistence.UserRepository, authorized persistence.AuthorizedEmailRepository, sessions persistence.SessionRepository, hasher PasswordHasher, idGenerator func() string, now func() time.Time, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	if hasher == nil {
		hasher = Argon2idHasher(DefaultArgon2idParams)
	}
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &AuthService{
		users:          users,
		authorized:     authorized,
		sessions:       sessions,
		hashPassword:   hasher,
		verifyPassword: VerifyPassword,
		idGenerator:    idGenerator,
		tokenGenerator: newSessionToken,
		now:            now,
		sessionTTL:     sessionTTL,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// SignUp creates an account for an invited email. The role comes from the invite.
func (s *AuthService) SignUp(ctx context.Context, params SignUpParams) (user persistence.User, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}

	email := persistence.NormalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "SignUp", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "signup failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID, "role", user.Role).InfoContext(ctx, "signup succeeded")
	}()

	vErr := &ValidationError{}
	if email == "" {
		vErr.Add("email", "email is required")
	}
	if len(params.Password) < MinPasswordLength {
		vErr.Add("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if strings.TrimSpace(params.FirstName) == "" {
		vErr.Add("first_name", "first name is required")
	}
	if strings.TrimSpace(params.LastName) == "" {
		vErr.Add("last_name", "last name is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var invite persistence.AuthorizedEmail
	invite, err = s.authorized.GetAuthorizedEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrEmailNotAuthorized
		}
		return
	}

	var hash string
	if hash, err = s.hashPassword(params.Password); err != nil {
		err = fmt.Errorf("hash password: %w", err)
		return
	}

	now := s.now()
	user = persistence.User{
		ID:           s.idGenerator(),
		Email:        email,
		FirstName:    strings.TrimSpace(params.FirstName),
		LastName:     strings.TrimSpace(params.LastName),
		Role:         invite.Role,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = s.users.CreateUser(ctx, user); err != nil {
		err = mapRepoError(err)
		user = persistence.User{}
	}
	return
}

// Authenticate validates credentials and issues a new session token.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}

	email := persistence.NormalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"user_id", result.User.ID,
			"session_id", result.Session.ID,
		).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	var user persistence.User
	user, err = s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}
	if !user.Active {
		err = ErrAccountDisabled
		return
	}
	if err = s.verifyPassword(user.PasswordHash, params.Password); err != nil {
		err = ErrInvalidCredentials
		return
	}

	now := s.now()
	session := persistence.Session{
		ID:        s.idGenerator(),
		UserID:    user.ID,
		Token:     s.tokenGenerator(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if session, err = s.sessions.CreateSession(ctx, session); err != nil {
		return
	}

	result = AuthenticateResult{User: user, Session: session, Principal: principalFor(user)}
	return
}

// ValidateSession verifies that token names a live session and returns its principal.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateSession", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.DebugContext(ctx, "session validation failed", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if trimmed == "" {
		err = ErrInvalidCredentials
		return
	}

	var session persistence.Session
	session, err = s.sessions.GetSession(ctx, trimmed)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}

	if session.RevokedAt != nil && !session.RevokedAt.IsZero() {
		err = ErrSessionRevoked
		return
	}
	if !session.ExpiresAt.After(s.now()) {
		err = ErrSessionExpired
		return
	}

	var user persistence.User
	user, err = s.users.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}
	if !user.Active {
		err = ErrAccountDisabled
		return
	}

	principal = principalFor(user)
	return
}

// RevokeSession invalidates an existing session token.
func (s *AuthService) RevokeSession(ctx context.Context, token string) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}

	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ErrInvalidCredentials
	}

	logger := s.loggerWith(ctx, "RevokeSession")
	if _, err := s.sessions.RevokeSession(ctx, trimmed, s.now()); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrInvalidCredentials
		}
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "session revoked")
	return nil
}

// PurgeExpiredSessions deletes expired and revoked sessions and reports how many went.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("AuthService is nil")
	}
	removed, err := s.sessions.DeleteExpiredSessions(ctx, s.now())
	logger := s.loggerWith(ctx, "PurgeExpiredSessions")
	if err != nil {
		logger.ErrorContext(ctx, "session purge failed", "error", err, "error_kind", ErrorKind(err))
		return 0, err
	}
	logger.InfoContext(ctx, "sessions purged", "removed", removed)
	return removed, nil
}

func principalFor(user persistence.User) Principal {
	return Principal{UserID: user.ID, Email: user.Email, Role: user.Role}
}
