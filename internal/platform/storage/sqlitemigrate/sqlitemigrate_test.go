package sqlitemigrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func TestApplyMigrationsRunsUpSectionsOnce(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_init.sql": &fstest.MapFile{Data: []byte(`
-- +migrate Up
CREATE TABLE widgets (id TEXT PRIMARY KEY, label TEXT NOT NULL);
-- +migrate Down
DROP TABLE widgets;
`)},
		"0002_extend.sql": &fstest.MapFile{Data: []byte(`
-- +migrate Up
ALTER TABLE widgets ADD COLUMN weight INTEGER;
-- +migrate Down
`)},
		"notes.txt": &fstest.MapFile{Data: []byte("ignored")},
	}

	sqlDB := openTestDB(t)
	if err := ApplyMigrations(sqlDB, fsys); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if _, err := sqlDB.Exec("INSERT INTO widgets (id, label, weight) VALUES ('a', 'first', 2)"); err != nil {
		t.Fatalf("insert into migrated table: %v", err)
	}

	// A second run must be a no-op rather than failing on existing DDL.
	if err := ApplyMigrations(sqlDB, fsys); err != nil {
		t.Fatalf("re-apply migrations: %v", err)
	}

	var applied int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("count applied migrations: %v", err)
	}
	if applied != 2 {
		t.Fatalf("applied migrations = %d, want 2", applied)
	}
}

func TestApplyMigrationsRequiresDB(t *testing.T) {
	if err := ApplyMigrations(nil, fstest.MapFS{}); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestExtractUpMigration(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "no markers returns whole content",
			content: "CREATE TABLE t (id TEXT);",
			want:    "CREATE TABLE t (id TEXT);",
		},
		{
			name:    "up and down sections",
			content: "-- +migrate Up\nCREATE TABLE t (id TEXT);\n-- +migrate Down\nDROP TABLE t;",
			want:    "\nCREATE TABLE t (id TEXT);\n",
		},
		{
			name:    "up only",
			content: "-- +migrate Up\nCREATE TABLE t (id TEXT);",
			want:    "\nCREATE TABLE t (id TEXT);",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractUpMigration(tc.content); got != tc.want {
				t.Fatalf("extractUpMigration = %q, want %q", got, tc.want)
			}
		})
	}
}
