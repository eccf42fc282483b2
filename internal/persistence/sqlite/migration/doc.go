// Package migration applies versioned SQL files to a SQLite database.
//
// Migration files follow the naming convention {version}_{description}.sql
// (for example "001_initial_schema.sql") and are read from an fs.FS, which
// lets the schema ship embedded in the binary. Applied versions and their
// checksums are tracked in a schema_migrations table; a file whose content
// changed after it was applied is reported instead of silently skipped.
//
// Example usage:
//
//	scanner := NewFileScanner(migrationsFS)
//	executor := NewSQLiteExecutor(db, logger)
//	manager := NewMigrationManager(scanner, executor, "migrations", logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
