package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/qr-pointage/internal/storage"
)

// NewSQLiteBackend opens a migrated SQLite backend in a temporary directory.
// The backend is closed when the test ends.
func NewSQLiteBackend(tb testing.TB) *storage.Backend {
	tb.Helper()
	return openBackend(tb, storage.Options{
		Driver:     storage.DriverSQLite,
		SQLitePath: filepath.Join(tb.TempDir(), "pointage.db"),
	})
}

// NewMemoryBackend opens an empty in-memory backend.
func NewMemoryBackend(tb testing.TB) *storage.Backend {
	tb.Helper()
	return openBackend(tb, storage.Options{Driver: storage.DriverMemory})
}

func openBackend(tb testing.TB, opts storage.Options) *storage.Backend {
	tb.Helper()
	backend, err := storage.Open(context.Background(), opts, nil)
	if err != nil {
		tb.Fatalf("failed to open %s backend: %v", opts.Driver, err)
	}
	tb.Cleanup(func() { _ = backend.Close() })
	return backend
}

// SeedUser stores the fixture through backend and fails the test on error.
func SeedUser(tb testing.TB, backend *storage.Backend, user UserFixture) {
	tb.Helper()
	if err := backend.Users.CreateUser(context.Background(), user.Persistence()); err != nil {
		tb.Fatalf("failed to seed user %s: %v", user.ID, err)
	}
}

// SeedRecord stores the fixture through backend and fails the test on error.
func SeedRecord(tb testing.TB, backend *storage.Backend, record RecordFixture) {
	tb.Helper()
	if _, err := backend.Records.InsertRecord(context.Background(), record.Persistence()); err != nil {
		tb.Fatalf("failed to seed record %s: %v", record.ID, err)
	}
}
