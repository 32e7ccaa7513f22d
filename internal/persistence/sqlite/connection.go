// Package sqlite implements the persistence repositories on top of SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/WilliamHangXu/EasyOH/internal/persistence"
	"github.com/WilliamHangXu/EasyOH/internal/persistence/sqlite/migration"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns the database handle and the repositories built on it.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	Users            *UserRepository
	AuthorizedEmails *AuthorizedEmailRepository
	OfficeHours      *OfficeHourRepository
	ChangeRequests   *ChangeRequestRepository
	Sessions         *SessionRepository
}

// Open connects to the SQLite database named by dsn.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: empty dsn")
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// Pragmas below are per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	return newStore(db, logger), nil
}

func newStore(db *sql.DB, logger *slog.Logger) *Store {
	mapper := NewErrorMapper()
	return &Store{
		db:               db,
		logger:           logger,
		Users:            &UserRepository{q: db, mapper: mapper},
		AuthorizedEmails: &AuthorizedEmailRepository{q: db, mapper: mapper},
		OfficeHours:      &OfficeHourRepository{q: db, mapper: mapper},
		ChangeRequests:   &ChangeRequestRepository{q: db, mapper: mapper},
		Sessions:         &SessionRepository{q: db, mapper: mapper},
	}
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("sqlite: migrations: %w", err)
	}
	return migration.NewManager(s.db, sub, s.logger).RunMigrations(ctx)
}

// DB returns the underlying database connection
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping tests the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type txRepositories struct {
	officeHours    *OfficeHourRepository
	changeRequests *ChangeRequestRepository
}

func (t txRepositories) OfficeHours() persistence.OfficeHourRepository       { return t.officeHours }
func (t txRepositories) ChangeRequests() persistence.ChangeRequestRepository { return t.changeRequests }

// WithTransaction executes fn within a database transaction.
// If fn returns an error or panics the transaction is rolled back. fn must only
// use the repositories it is handed; the pool holds a single connection.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx persistence.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	mapper := NewErrorMapper()
	repos := txRepositories{
		officeHours:    &OfficeHourRepository{q: tx, mapper: mapper},
		changeRequests: &ChangeRequestRepository{q: tx, mapper: mapper},
	}

	if err := fn(repos); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ErrorMapper maps SQLite errors to persistence layer errors
type ErrorMapper struct{}

// NewErrorMapper creates a new error mapper
func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{}
}

// MapError maps SQLite-specific errors to persistence layer errors
func (em *ErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "UNIQUE constraint failed"), strings.Contains(errStr, "PRIMARY KEY constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case strings.Contains(errStr, "FOREIGN KEY constraint failed"),
		strings.Contains(errStr, "CHECK constraint failed"),
		strings.Contains(errStr, "NOT NULL constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}
	return err
}
