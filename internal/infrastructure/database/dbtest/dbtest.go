// Package dbtest opens migrated SQLite databases for tests in other packages.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nerrad567/pmflow-core/internal/infrastructure/config"
	"github.com/nerrad567/pmflow-core/internal/infrastructure/database"
	"github.com/nerrad567/pmflow-core/migrations"
)

// Open returns a file-backed database in t.TempDir() with the full schema
// applied. It is closed when the test completes.
func Open(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db
}
