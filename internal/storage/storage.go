// Package storage opens the configured persistence backend and adapts its
// repositories to the ports the application services consume.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/qr-pointage/internal/persistence"
	"github.com/example/qr-pointage/internal/persistence/memory"
	"github.com/example/qr-pointage/internal/persistence/sqlite"
	"github.com/example/qr-pointage/internal/persistence/sqlite/migration"
)

// Drivers accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Driver string
	// SQLitePath is the database file, or ":memory:".
	SQLitePath string
}

// Backend bundles the repositories of one store.
type Backend struct {
	Users    persistence.UserRepository
	Records  persistence.RecordRepository
	Sessions persistence.SessionRepository

	ping  func(ctx context.Context) error
	close func() error
}

// Open connects to the backend named by opts and applies pending migrations.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case DriverMemory:
		store := memory.New()
		return &Backend{
			Users:    store,
			Records:  store,
			Sessions: store,
			ping:     store.Ping,
			close:    store.Close,
		}, nil
	case DriverSQLite, "":
		if strings.TrimSpace(opts.SQLitePath) == "" {
			return nil, errors.New("storage: sqlite path is required")
		}
		store, err := sqlite.Open(migration.DefaultSQLiteConfig(opts.SQLitePath), logger)
		if err != nil {
			return nil, fmt.Errorf("storage: open sqlite: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return &Backend{
			Users:    store.Users,
			Records:  store.Records,
			Sessions: store.Sessions,
			ping:     store.Ping,
			close:    store.Close,
		}, nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", opts.Driver)
	}
}

// Ping reports whether the backend answers.
func (b *Backend) Ping(ctx context.Context) error {
	if b == nil || b.ping == nil {
		return errors.New("storage: backend not open")
	}
	return b.ping(ctx)
}

// Close releases the backend.
func (b *Backend) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}
