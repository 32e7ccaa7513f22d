package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/WilliamHangXu/EasyOH/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite
type SessionRepository struct {
	q      queryer
	mapper *ErrorMapper
}

// CreateSession stores a new session token for a user
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.ID == "" || session.UserID == "" || strings.TrimSpace(session.Token) == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	session.Token = strings.TrimSpace(session.Token)
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, token, expires_at, created_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		session.Token,
		formatUTC(session.ExpiresAt),
		formatUTC(session.CreatedAt),
		nullTimePtr(session.RevokedAt),
	)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	return session, nil
}

// GetSession retrieves a session by its token value
func (r *SessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	normalizedToken := strings.TrimSpace(token)
	if normalizedToken == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	var (
		session              persistence.Session
		expiresAt, createdAt string
		revokedAt            sql.NullString
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, token, expires_at, created_at, revoked_at
		FROM sessions
		WHERE token = ?`, normalizedToken).Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&expiresAt,
		&createdAt,
		&revokedAt,
	)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}

	if session.ExpiresAt, err = parseTime("expires_at", expiresAt); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Session{}, err
	}
	if session.RevokedAt, err = parseNullTimePtr("revoked_at", revokedAt); err != nil {
		return persistence.Session{}, err
	}
	return session, nil
}

// RevokeSession marks a session as revoked based on its token value
func (r *SessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	normalizedToken := strings.TrimSpace(token)
	if normalizedToken == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	result, err := r.q.ExecContext(ctx, `
		UPDATE sessions
		SET revoked_at = COALESCE(revoked_at, ?)
		WHERE token = ?`, formatUTC(revokedAt), normalizedToken)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	if err := requireAffected(result); err != nil {
		return persistence.Session{}, err
	}
	return r.GetSession(ctx, normalizedToken)
}

// DeleteExpiredSessions removes sessions that expired at or before reference or were revoked.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error) {
	result, err := r.q.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE expires_at <= ? OR revoked_at IS NOT NULL`, formatUTC(reference))
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return result.RowsAffected()
}
