// Package testutil provides fixtures shared by margin's package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/tOgg1/margin/internal/db"
)

// OpenDB opens a migrated in-memory database that is closed when the test
// ends.
func OpenDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.OpenInMemory()
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if _, err := database.MigrateUp(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}
