// Package migration applies versioned SQL files to a SQLite database.
//
// Migration files follow the naming convention {version}_{description}.sql
// (e.g. "001_office_hours.sql") and are read from an fs.FS, usually an embedded
// directory. Applied versions are tracked in a schema_migrations table together
// with the checksum of the file that was run, so an edited migration is reported
// instead of being silently skipped.
//
// Example usage:
//
//	manager := migration.NewManager(db, migrationFS, logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
