package sqlite

import (
	"context"
	"time"

	"github.com/WilliamHangXu/EasyOH/internal/persistence"
)

// AuthorizedEmailRepository implements persistence.AuthorizedEmailRepository using SQLite
type AuthorizedEmailRepository struct {
	q      queryer
	mapper *ErrorMapper
}

// AuthorizeEmail inserts an allow list entry or updates the role of an existing one.
func (r *AuthorizedEmailRepository) AuthorizeEmail(ctx context.Context, entry persistence.AuthorizedEmail) error {
	email := persistence.NormalizeEmail(entry.Email)
	if email == "" || !entry.Role.Valid() {
		return persistence.ErrConstraintViolation
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO authorized_emails (email, role, invited_by, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET role = excluded.role, invited_by = excluded.invited_by`,
		email,
		string(entry.Role),
		entry.InvitedBy,
		formatUTC(entry.CreatedAt),
	)
	return r.mapper.MapError(err)
}

// GetAuthorizedEmail looks up an allow list entry.
func (r *AuthorizedEmailRepository) GetAuthorizedEmail(ctx context.Context, email string) (persistence.AuthorizedEmail, error) {
	normalized := persistence.NormalizeEmail(email)
	if normalized == "" {
		return persistence.AuthorizedEmail{}, persistence.ErrNotFound
	}

	var (
		entry     persistence.AuthorizedEmail
		role      string
		createdAt string
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT email, role, invited_by, created_at
		FROM authorized_emails
		WHERE email = ?`, normalized).Scan(&entry.Email, &role, &entry.InvitedBy, &createdAt)
	if err != nil {
		return persistence.AuthorizedEmail{}, r.mapper.MapError(err)
	}
	entry.Role = persistence.Role(role)
	if entry.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.AuthorizedEmail{}, err
	}
	return entry, nil
}

// RevokeAuthorizedEmail removes an allow list entry.
func (r *AuthorizedEmailRepository) RevokeAuthorizedEmail(ctx context.Context, email string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM authorized_emails WHERE email = ?`, persistence.NormalizeEmail(email))
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}
