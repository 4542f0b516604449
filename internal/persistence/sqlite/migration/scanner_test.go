package migration

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestFileScanner_ScanMigrations(t *testing.T) {
	tests := []struct {
		name          string
		files         fstest.MapFS
		expectedOrder []string
		expectErr     error
	}{
		{
			name: "orders by numeric version and skips other files",
			files: fstest.MapFS{
				"sql/010_late.sql":    {Data: []byte("CREATE TABLE late (id TEXT);")},
				"sql/002_second.sql":  {Data: []byte("CREATE TABLE b (id TEXT);")},
				"sql/001_initial.sql": {Data: []byte("CREATE TABLE a (id TEXT);")},
				"sql/README.md":       {Data: []byte("# notes")},
			},
			expectedOrder: []string{"001", "002", "010"},
		},
		{
			name:          "empty directory",
			files:         fstest.MapFS{"sql/.keep": {}},
			expectedOrder: nil,
		},
		{
			name: "invalid filename",
			files: fstest.MapFS{
				"sql/initial.sql": {Data: []byte("CREATE TABLE a (id TEXT);")},
			},
			expectErr: ErrInvalidMigrationFile,
		},
		{
			name: "duplicate version",
			files: fstest.MapFS{
				"sql/001_a.sql":  {Data: []byte("CREATE TABLE a (id TEXT);")},
				"sql/0001_b.sql": {Data: []byte("CREATE TABLE b (id TEXT);")},
			},
			expectErr: ErrDuplicateVersion,
		},
		{
			name: "comment only file",
			files: fstest.MapFS{
				"sql/001_empty.sql": {Data: []byte("-- nothing here\n")},
			},
			expectErr: ErrInvalidMigrationFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			migrations, err := NewFileScanner().ScanMigrations(tt.files, "sql")
			if tt.expectErr != nil {
				if !errors.Is(err, tt.expectErr) {
					t.Fatalf("expected %v, got %v", tt.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(migrations) != len(tt.expectedOrder) {
				t.Fatalf("expected %d migrations, got %d", len(tt.expectedOrder), len(migrations))
			}
			for i, version := range tt.expectedOrder {
				if migrations[i].Version != version {
					t.Fatalf("position %d: expected version %s, got %s", i, version, migrations[i].Version)
				}
				if migrations[i].Checksum == "" {
					t.Fatalf("expected checksum for %s", version)
				}
			}
		})
	}
}

func TestDescriptionFromContent(t *testing.T) {
	sql := "-- Migration: 001\n-- Description: create availability rows\nCREATE TABLE a (id TEXT);"
	if got := descriptionFromContent(sql); got != "create availability rows" {
		t.Fatalf("unexpected description %q", got)
	}

	migrations, err := NewFileScanner().ScanMigrations(fstest.MapFS{
		"m/003_add_capability_index.sql": {Data: []byte("CREATE INDEX i ON a(id);")},
	}, "m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if migrations[0].Description != "add capability index" {
		t.Fatalf("expected description from filename, got %q", migrations[0].Description)
	}
}

func TestSplitStatements(t *testing.T) {
	statements := splitStatements(`
-- leading comment
CREATE TABLE a (id TEXT);
-- between
CREATE INDEX idx_a ON a(id);
`)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
}
