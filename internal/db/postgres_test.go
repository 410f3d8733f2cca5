package db

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMigrate_Idempotent(t *testing.T) {
	database := SetupTestDB(t)
	defer database.Close()
	defer CleanupTestDB(t, database)

	// SetupTestDB already migrated once
	if err := Migrate(database); err != nil {
		t.Fatalf("Second migration run failed: %v", err)
	}
}

func TestSchema_RejectsZeroShareRows(t *testing.T) {
	database := SetupTestDB(t)
	defer database.Close()
	defer CleanupTestDB(t, database)

	userID := CreateTestUser(t, database, "schema", decimal.NewFromInt(10000))

	_, err := database.Exec(
		"INSERT INTO shares (user_id, symbol, shares, amount, transaction_type) VALUES ($1, 'AAPL', 0, 0, 'buy')",
		userID,
	)
	if err == nil {
		t.Error("Expected check constraint to reject a zero-share ledger row")
	}
}

func TestSchema_DefaultCash(t *testing.T) {
	database := SetupTestDB(t)
	defer database.Close()
	defer CleanupTestDB(t, database)

	var cash decimal.Decimal
	err := database.QueryRow(
		"INSERT INTO users (username, hash) VALUES ('defaults', 'x') RETURNING cash",
	).Scan(&cash)
	if err != nil {
		t.Fatalf("Failed to insert user: %v", err)
	}
	if !cash.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("Expected default cash 10000, got %s", cash)
	}
}
