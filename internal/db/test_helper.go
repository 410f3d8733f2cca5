package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/atharvakonge/papertrade/internal/config"
	"github.com/shopspring/decimal"
)

// TestDatabaseEnv names the variable holding the Postgres URL for integration tests
const TestDatabaseEnv = "TEST_DATABASE_URL"

// SetupTestDB connects to the test database and migrates it.
// The test is skipped when TEST_DATABASE_URL is not set.
func SetupTestDB(t testing.TB) *sql.DB {
	t.Helper()

	url := os.Getenv(TestDatabaseEnv)
	if url == "" {
		t.Skipf("%s not set, skipping Postgres integration test", TestDatabaseEnv)
	}

	db, err := Open(context.Background(), config.DatabaseConfig{
		URL:             url,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestDB deletes all test data
func CleanupTestDB(t testing.TB, db *sql.DB) {
	t.Helper()
	if _, err := db.Exec("TRUNCATE shares, users RESTART IDENTITY CASCADE"); err != nil {
		t.Logf("Warning: Failed to cleanup tables: %v", err)
	}
}

// CreateTestUser creates a test user and returns user ID
func CreateTestUser(t testing.TB, db *sql.DB, username string, cash decimal.Decimal) int64 {
	t.Helper()

	var userID int64

	// Make username unique by adding timestamp
	uniqueUsername := fmt.Sprintf("%s_%d", username, time.Now().UnixNano())

	err := db.QueryRow(
		"INSERT INTO users (username, hash, cash) VALUES ($1, $2, $3) RETURNING id",
		uniqueUsername, "not-a-real-hash", cash,
	).Scan(&userID)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return userID
}
