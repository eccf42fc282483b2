package migration

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func mapFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, content := range files {
		fsys["migrations/"+name] = &fstest.MapFile{Data: []byte(content)}
	}
	return fsys
}

func TestFileScanner_ScanMigrations(t *testing.T) {
	tests := []struct {
		name          string
		files         map[string]string
		expectedOrder []string
		expectedErr   error
		errorContains string
	}{
		{
			name: "orders files by numeric version",
			files: map[string]string{
				"010_add_sessions.sql":   "CREATE TABLE sessions (id TEXT PRIMARY KEY);",
				"002_add_records.sql":    "CREATE TABLE attendance_records (id TEXT PRIMARY KEY);",
				"001_initial_schema.sql": "CREATE TABLE users (id TEXT PRIMARY KEY);",
			},
			expectedOrder: []string{"001", "002", "010"},
		},
		{
			name: "ignores non-SQL files",
			files: map[string]string{
				"001_initial_schema.sql": "CREATE TABLE users (id TEXT PRIMARY KEY);",
				"README.md":              "# notes",
			},
			expectedOrder: []string{"001"},
		},
		{
			name: "rejects invalid file names",
			files: map[string]string{
				"initial.sql": "CREATE TABLE users (id TEXT PRIMARY KEY);",
			},
			expectedErr:   ErrInvalidMigrationFile,
			errorContains: "does not match pattern",
		},
		{
			name: "rejects duplicate versions",
			files: map[string]string{
				"001_users.sql":  "CREATE TABLE users (id TEXT PRIMARY KEY);",
				"0001_other.sql": "CREATE TABLE other (id TEXT PRIMARY KEY);",
			},
			expectedErr: ErrDuplicateVersion,
		},
		{
			name: "rejects comment-only files",
			files: map[string]string{
				"001_empty.sql": "-- nothing here\n",
			},
			expectedErr: ErrInvalidMigrationFile,
		},
		{
			name: "rejects unbalanced parentheses",
			files: map[string]string{
				"001_broken.sql": "CREATE TABLE users (id TEXT PRIMARY KEY;",
			},
			errorContains: "unmatched opening parenthesis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := NewFileScanner(mapFS(tt.files))
			migrations, err := scanner.ScanMigrations("migrations")

			if tt.expectedErr != nil || tt.errorContains != "" {
				if err == nil {
					t.Fatalf("Expected error, got %d migrations", len(migrations))
				}
				if tt.expectedErr != nil && !errors.Is(err, tt.expectedErr) {
					t.Fatalf("Expected %v, got %v", tt.expectedErr, err)
				}
				if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Fatalf("Expected error containing %q, got %v", tt.errorContains, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ScanMigrations failed: %v", err)
			}
			if len(migrations) != len(tt.expectedOrder) {
				t.Fatalf("Expected %d migrations, got %d", len(tt.expectedOrder), len(migrations))
			}
			for i, version := range tt.expectedOrder {
				if migrations[i].Version != version {
					t.Errorf("Expected version %s at position %d, got %s", version, i, migrations[i].Version)
				}
			}
		})
	}
}

func TestFileScanner_MissingDirectory(t *testing.T) {
	scanner := NewFileScanner(fstest.MapFS{})
	_, err := scanner.ScanMigrations("migrations")

	var fsErr *FileSystemError
	if !errors.As(err, &fsErr) {
		t.Fatalf("Expected FileSystemError, got %v", err)
	}
}

func TestFileScanner_Description(t *testing.T) {
	scanner := NewFileScanner(mapFS(map[string]string{
		"001_initial_schema.sql": "-- Description: Users and attendance records\nCREATE TABLE users (id TEXT);",
		"002_add_sessions.sql":   "CREATE TABLE sessions (id TEXT);",
	}))

	migrations, err := scanner.ScanMigrations("migrations")
	if err != nil {
		t.Fatalf("ScanMigrations failed: %v", err)
	}
	if migrations[0].Description != "Users and attendance records" {
		t.Errorf("Expected description from comment, got %q", migrations[0].Description)
	}
	if migrations[1].Description != "add sessions" {
		t.Errorf("Expected description from filename, got %q", migrations[1].Description)
	}
	if migrations[0].Checksum == "" || migrations[0].Checksum == migrations[1].Checksum {
		t.Errorf("Expected distinct checksums, got %q and %q", migrations[0].Checksum, migrations[1].Checksum)
	}
}

func TestSplitStatements(t *testing.T) {
	sql := `
-- leading comment
CREATE TABLE a (id TEXT); -- trailing
CREATE INDEX idx_a ON a(id);

`
	statements := splitStatements(sql)
	if len(statements) != 2 {
		t.Fatalf("Expected 2 statements, got %d: %q", len(statements), statements)
	}
	if statements[1] != "CREATE INDEX idx_a ON a(id)" {
		t.Errorf("Unexpected second statement %q", statements[1])
	}
}
