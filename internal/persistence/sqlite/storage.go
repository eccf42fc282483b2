// Package sqlite implements the persistence repositories on top of the
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/qr-pointage/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationDir = "migrations"

// Storage bundles the SQLite repositories sharing one connection pool.
type Storage struct {
	pool   *ConnectionPool
	logger *slog.Logger

	Users    *UserRepository
	Records  *RecordRepository
	Sessions *SessionRepository
}

// Open connects to the database described by config.
func Open(config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}

	return &Storage{
		pool:     pool,
		logger:   logger,
		Users:    NewUserRepository(pool),
		Records:  NewRecordRepository(pool),
		Sessions: NewSessionRepository(pool),
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	scanner := migration.NewFileScanner(migrationFiles)
	executor := migration.NewSQLiteExecutor(s.pool.DB(), s.logger)
	manager := migration.NewMigrationManager(scanner, executor, migrationDir, s.logger)

	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Ping checks that the database answers.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
