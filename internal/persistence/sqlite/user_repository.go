package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/WilliamHangXu/EasyOH/internal/persistence"
)

// UserRepository implements persistence.UserRepository using SQLite
type UserRepository struct {
	q      queryer
	mapper *ErrorMapper
}

const userColumns = `id, email, first_name, last_name, role, password_hash, active, created_at, updated_at`

// CreateUser inserts a new user into the database
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if strings.TrimSpace(user.ID) == "" || user.PasswordHash == "" || !user.Role.Valid() {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		persistence.NormalizeEmail(user.Email),
		strings.TrimSpace(user.FirstName),
		strings.TrimSpace(user.LastName),
		string(user.Role),
		user.PasswordHash,
		user.Active,
		formatUTC(user.CreatedAt),
		formatUTC(user.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateUser updates an existing user in the database
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	if strings.TrimSpace(user.ID) == "" || user.PasswordHash == "" || !user.Role.Valid() {
		return persistence.ErrConstraintViolation
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = time.Now().UTC()
	}

	result, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET email = ?, first_name = ?, last_name = ?, role = ?, password_hash = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		persistence.NormalizeEmail(user.Email),
		strings.TrimSpace(user.FirstName),
		strings.TrimSpace(user.LastName),
		string(user.Role),
		user.PasswordHash,
		user.Active,
		formatUTC(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// GetUser retrieves a user by ID from the database
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if strings.TrimSpace(id) == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return r.scanUser(row)
}

// GetUserByEmail retrieves a user by case-insensitive email.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	normalized := persistence.NormalizeEmail(email)
	if normalized == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalized)
	return r.scanUser(row)
}

// ListUsersByRole returns every account with role ordered by name.
func (r *UserRepository) ListUsersByRole(ctx context.Context, role persistence.Role) ([]persistence.User, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE role = ?
		ORDER BY last_name, first_name, email`, string(role))
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *UserRepository) scanUser(row rowScanner) (persistence.User, error) {
	var (
		user                 persistence.User
		role                 string
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&role,
		&user.PasswordHash,
		&user.Active,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}
	user.Role = persistence.Role(role)

	var err error
	if user.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
