package persistence

import (
	"strings"
	"time"
)

// Role distinguishes course staff accounts.
type Role string

const (
	RoleInstructor Role = "instructor"
	RoleTA         Role = "ta"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleInstructor || r == RoleTA
}

// User represents a course staff account.
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	Role         Role
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName is "First Last", falling back to the email address.
func (u User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Email
	}
	return name
}

// AuthorizedEmail is an address an instructor has allowed to sign up.
type AuthorizedEmail struct {
	Email     string
	Role      Role
	InvitedBy string
	CreatedAt time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
