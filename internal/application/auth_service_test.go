package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/WilliamHangXu/EasyOH/internal/persistence"
)

var cheapArgon2 = Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestAuthService_SignUp(t *testing.T) {
	t.Parallel()

	t.Run("creates accounts for invited emails with the invited role", func(t *testing.T) {
		t.Parallel()

		env := newAuthEnv(t)
		env.authorized.entries["inst@example.edu"] = persistence.AuthorizedEmail{Email: "inst@example.edu", Role: persistence.RoleInstructor}

		user, err := env.svc.SignUp(context.Background(), SignUpParams{
			Email: " Inst@Example.edu ", Password: "correct horse", FirstName: "Ada", LastName: "Lovelace",
		})
		if err != nil {
			t.Fatalf("SignUp failed: %v", err)
		}
		if user.Role != persistence.RoleInstructor || user.Email != "inst@example.edu" || !user.Active {
			t.Fatalf("unexpected user: %#v", user)
		}
		if !strings.HasPrefix(user.PasswordHash, "$argon2id$") {
			t.Fatalf("expected argon2id hash, got %q", user.PasswordHash)
		}
		if err := VerifyPassword(user.PasswordHash, "correct horse"); err != nil {
			t.Fatalf("stored hash does not verify: %v", err)
		}
	})

	t.Run("rejects emails without an invite", func(t *testing.T) {
		t.Parallel()

		env := newAuthEnv(t)
		_, err := env.svc.SignUp(context.Background(), SignUpParams{
			Email: "stranger@example.edu", Password: "long enough", FirstName: "S", LastName: "T",
		})
		if !errors.Is(err, ErrEmailNotAuthorized) {
			t.Fatalf("expected ErrEmailNotAuthorized, got %v", err)
		}
	})

	t.Run("reports every invalid field", func(t *testing.T) {
		t.Parallel()

		env := newAuthEnv(t)
		_, err := env.svc.SignUp(context.Background(), SignUpParams{Password: "short"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		for _, field := range []string{"email", "password", "first_name", "last_name"} {
			if vErr.Field(field) == "" {
				t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("rejects a second account for the same email", func(t *testing.T) {
		t.Parallel()

		env := newAuthEnv(t)
		env.authorized.entries["ta@example.edu"] = persistence.AuthorizedEmail{Email: "ta@example.edu", Role: persistence.RoleTA}
		params := SignUpParams{Email: "ta@example.edu", Password: "long enough", FirstName: "T", LastName: "A"}
		if _, err := env.svc.SignUp(context.Background(), params); err != nil {
			t.Fatalf("first SignUp failed: %v", err)
		}
		if _, err := env.svc.SignUp(context.Background(), params); !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestAuthService_Authenticate(t *testing.T) {
	t.Parallel()

	t.Run("issues sessions for valid credentials", func(t *testing.T) {
		t.Parallel()

		env := newAuthEnv(t)
		env.addUser(t, "user-1", "ta@example.edu", "secret-pass", true)

		result, err := env.svc.Authenticate(context.Background(), AuthenticateParams{Email: "TA@example.edu", Password: "secret-pass"})
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if result.Session.Token == "" || result.Session.UserID != "user-1" {
			t.Fatalf("unexpected session: %#v", result.Session)
		}
		if !result.Session.ExpiresAt.Equal(env.now.Add(time.Hour)) {
			t.Fatalf("expected expiry one TTL after now, got %v", result.Session.ExpiresAt)
		}
		if result.Principal.UserID != "user-1" || result.Principal.Role != persistence.RoleTA {
			t.Fatalf("unexpected principal: %#v", result.Principal)
		}
	})

	t.Run("rejects disabled accounts", func(t *testing.T) {
		t.Parallel()

		env := newAuthEnv(t)
		env.addUser(t, "user-1", "ta@example.edu", "secret-pass", false)

		_, err := env.svc.Authenticate(context.Background(), AuthenticateParams{Email: "ta@example.edu", Password: "secret-pass"})
		if !errors.Is(err, ErrAccountDisabled) {
			t.Fatalf("expected ErrAccountDisabled, got %v", err)
		}
	})

	t.Run("rejects invalid credentials with sentinel error", func(t *testing.T) {
		t.Parallel()

		env := newAuthEnv(t)
		env.addUser(t, "user-1", "ta@example.edu", "secret-pass", true)

		for _, params := range []AuthenticateParams{
			{Email: "ta@example.edu", Password: "wrong"},
			{Email: "nobody@example.edu", Password: "secret-pass"},
			{Email: "", Password: ""},
		} {
			if _, err := env.svc.Authenticate(context.Background(), params); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials for %#v, got %v", params, err)
			}
		}
	})

	t.Run("propagates repository failures", func(t *testing.T) {
		t.Parallel()

		env := newAuthEnv(t)
		env.addUser(t, "user-1", "ta@example.edu", "secret-pass", true)
		expected := errors.New("boom")
		env.sessions.createErr = expected

		_, err := env.svc.Authenticate(context.Background(), AuthenticateParams{Email: "ta@example.edu", Password: "secret-pass"})
		if !errors.Is(err, expected) {
			t.Fatalf("expected error %v, got %v", expected, err)
		}
	})
}

func TestAuthService_ValidateSession(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	env.addUser(t, "user-1", "ta@example.edu", "secret-pass", true)
	result, err := env.svc.Authenticate(context.Background(), AuthenticateParams{Email: "ta@example.edu", Password: "secret-pass"})
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	principal, err := env.svc.ValidateSession(context.Background(), result.Session.Token)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if principal.Email != "ta@example.edu" {
		t.Fatalf("unexpected principal: %#v", principal)
	}

	if _, err := env.svc.ValidateSession(context.Background(), "unknown"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown token, got %v", err)
	}

	env.advance(2 * time.Hour)
	if _, err := env.svc.ValidateSession(context.Background(), result.Session.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestAuthService_RevokeSession(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	env.addUser(t, "user-1", "ta@example.edu", "secret-pass", true)
	result, err := env.svc.Authenticate(context.Background(), AuthenticateParams{Email: "ta@example.edu", Password: "secret-pass"})
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	if err := env.svc.RevokeSession(context.Background(), result.Session.Token); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if _, err := env.svc.ValidateSession(context.Background(), result.Session.Token); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
	if err := env.svc.RevokeSession(context.Background(), "unknown"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	removed, err := env.svc.PurgeExpiredSessions(context.Background())
	if err != nil {
		t.Fatalf("PurgeExpiredSessions failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected the revoked session to be purged, removed %d", removed)
	}
}

type authEnv struct {
	svc        *AuthService
	users      *userRepoStub
	authorized *authorizedRepoStub
	sessions   *sessionRepoStub

	mu  sync.Mutex
	now time.Time
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	env := &authEnv{
		users:      &userRepoStub{users: map[string]persistence.User{}},
		authorized: &authorizedRepoStub{entries: map[string]persistence.AuthorizedEmail{}},
		sessions:   &sessionRepoStub{sessions: map[string]persistence.Session{}},
		now:        time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC),
	}
	counter := 0
	ids := func() string {
		env.mu.Lock()
		defer env.mu.Unlock()
		counter++
		return fmt.Sprintf("id-%d", counter)
	}
	clock := func() time.Time {
		env.mu.Lock()
		defer env.mu.Unlock()
		return env.now
	}
	env.svc = NewAuthService(env.users, env.authorized, env.sessions, Argon2idHasher(cheapArgon2), ids, clock, time.Hour, nil)
	return env
}

func (e *authEnv) advance(d time.Duration) {
	e.mu.Lock()
	e.now = e.now.Add(d)
	e.mu.Unlock()
}

func (e *authEnv) addUser(t *testing.T, id, email, password string, active bool) {
	t.Helper()
	hash, err := CreatePasswordHash(password, cheapArgon2)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	e.users.users[id] = persistence.User{ID: id, Email: email, Role: persistence.RoleTA, PasswordHash: hash, Active: active}
}

type userRepoStub struct {
	mu    sync.Mutex
	users map[string]persistence.User
}

func (s *userRepoStub) CreateUser(_ context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return persistence.ErrDuplicate
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *userRepoStub) UpdateUser(_ context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.users[user.ID] = user
	return nil
}

func (s *userRepoStub) GetUser(_ context.Context, id string) (persistence.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (s *userRepoStub) GetUserByEmail(_ context.Context, email string) (persistence.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == persistence.NormalizeEmail(email) {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

func (s *userRepoStub) ListUsersByRole(_ context.Context, role persistence.Role) ([]persistence.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []persistence.User
	for _, user := range s.users {
		if user.Role == role {
			out = append(out, user)
		}
	}
	return out, nil
}

type authorizedRepoStub struct {
	mu      sync.Mutex
	entries map[string]persistence.AuthorizedEmail
}

func (s *authorizedRepoStub) AuthorizeEmail(_ context.Context, entry persistence.AuthorizedEmail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[persistence.NormalizeEmail(entry.Email)] = entry
	return nil
}

func (s *authorizedRepoStub) GetAuthorizedEmail(_ context.Context, email string) (persistence.AuthorizedEmail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[persistence.NormalizeEmail(email)]
	if !ok {
		return persistence.AuthorizedEmail{}, persistence.ErrNotFound
	}
	return entry, nil
}

func (s *authorizedRepoStub) RevokeAuthorizedEmail(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := persistence.NormalizeEmail(email)
	if _, ok := s.entries[key]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.entries, key)
	return nil
}

type sessionRepoStub struct {
	mu        sync.Mutex
	sessions  map[string]persistence.Session
	createErr error
}

func (s *sessionRepoStub) CreateSession(_ context.Context, session persistence.Session) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return persistence.Session{}, s.createErr
	}
	s.sessions[session.Token] = session
	return session, nil
}

func (s *sessionRepoStub) GetSession(_ context.Context, token string) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return session, nil
}

func (s *sessionRepoStub) RevokeSession(_ context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	s.sessions[token] = session
	return session, nil
}

func (s *sessionRepoStub) DeleteExpiredSessions(_ context.Context, reference time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for token, session := range s.sessions {
		if session.RevokedAt != nil || !session.ExpiresAt.After(reference) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed, nil
}
