package migration

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
)

// Manager orchestrates the migration process
type Manager struct {
	fsys     fs.FS
	dir      string
	executor *Executor
	logger   *slog.Logger
}

// NewManager creates a Manager reading migrations from the root of fsys.
func NewManager(db *sql.DB, fsys fs.FS, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		fsys:     fsys,
		dir:      ".",
		executor: NewExecutor(db),
		logger:   logger.With("component", "migration"),
	}
}

// RunMigrations executes all pending migrations in sequential order
func (m *Manager) RunMigrations(ctx context.Context) error {
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "schema version",
		"current_version", status.CurrentVersion,
		"pending", len(status.PendingMigrations),
	)

	for i, migration := range status.PendingMigrations {
		m.logger.InfoContext(ctx, "applying migration",
			"version", migration.Version,
			"description", migration.Description,
			"position", i+1,
			"total", len(status.PendingMigrations),
		)
		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed", "version", migration.Version, "error", err)
			return NewMigrationError(migration.Version, migration.FilePath,
				"execute migration", fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}
	}
	return nil
}

// Status compares the migration files with the schema_migrations table.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, fmt.Errorf("initialize version table: %w", err)
	}

	migrations, err := Scan(m.fsys, m.dir)
	if err != nil {
		return Status{}, err
	}

	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return Status{}, err
	}

	appliedByVersion := make(map[string]AppliedMigration, len(applied))
	for _, record := range applied {
		appliedByVersion[record.Version] = record
	}

	status := Status{AppliedMigrations: applied}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	for _, migration := range migrations {
		record, ok := appliedByVersion[migration.Version]
		if !ok {
			status.PendingMigrations = append(status.PendingMigrations, migration)
			continue
		}
		if record.Checksum != "" && record.Checksum != migration.Checksum {
			return Status{}, NewMigrationError(migration.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return status, nil
}
