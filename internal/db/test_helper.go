package db

import (
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
)

// SetupTestDB connects to TEST_DATABASE_URL and migrates it. Tests are
// skipped when the variable is not set.
func SetupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	CleanupTestDB(t, db)
	t.Cleanup(func() {
		CleanupTestDB(t, db)
		db.Close()
	})
	return db
}

// CleanupTestDB cleans up test data
func CleanupTestDB(t *testing.T, db *sqlx.DB) {
	// Delete all test data, children first
	tables := []string{"transactions", "holdings", "users", "instruments"}
	for _, table := range tables {
		_, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			log.Printf("Warning: Failed to cleanup table %s: %v", table, err)
		}
	}
}
