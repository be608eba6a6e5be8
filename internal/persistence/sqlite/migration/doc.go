// Package migration applies versioned SQL migrations to the calendar database.
//
// Migration files are read from an fs.FS (normally an embedded directory) and
// follow the naming convention {version}_{description}.sql, for example
// "001_create_events.sql". Versions must form a continuous sequence.
//
// Applied versions are tracked in a schema_migrations table together with the
// checksum of the file that was executed, so an edited migration is detected
// on the next start.
//
// Example usage:
//
//	scanner := migration.NewFileScanner(migrationFS, "migrations")
//	manager := migration.NewManager(scanner, migration.NewSQLiteExecutor(db), logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
