// Package testdb opens throwaway SQLite databases with the real migrations
// applied, for package tests.
package testdb

import (
	"database/sql"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"partyhub/pkg/db/sqlite"
)

// Open returns a migrated database backed by a file in the test's temp dir.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.ConnectAndMigrate(filepath.Join(t.TempDir(), "test.db"), migrationsDir())
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// SeedUser inserts a user row and returns its id.
func SeedUser(t *testing.T, db *sql.DB, username string) int64 {
	t.Helper()

	res, err := db.Exec(`
		INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)
	`, username, "x", time.Now())
	if err != nil {
		t.Fatalf("seeding user %q: %v", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("seeding user %q: %v", username, err)
	}
	return id
}

func migrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "pkg", "db", "migrations", "sqlite")
}
