// Package testing provides test helpers shared by the service packages.
package testing

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/database"
)

// NewTestDB creates a file-backed sqlite database in a per-test temp dir and applies
// the embedded schema for name ("core" or "history"). Unknown names get an empty database.
// The database is closed automatically when the test ends.
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), fmt.Sprintf("test_%s.db", name)),
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	return db
}
