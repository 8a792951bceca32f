// Package testing provides database helpers shared by package tests.
package testing

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/aristath/sentinel-analytics/internal/database"
)

// NewTestDBWithSchema creates a file-backed SQLite database under t.TempDir and
// executes schema on it. The database is closed when the test finishes.
func NewTestDBWithSchema(t *testing.T, name string, schema string) *database.DB {
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

	if schema != "" {
		if _, err := db.Conn().Exec(schema); err != nil {
			t.Fatalf("Failed to execute schema for test database %s: %v", name, err)
		}
	}

	return db
}

// DailyClose is one row of price history used as a test fixture.
type DailyClose struct {
	Symbol string
	Date   string
	Close  float64
}

// InsertDailyCloses writes flat OHLC bars (open = high = low = close) into
// daily_prices.
func InsertDailyCloses(t *testing.T, db *database.DB, rows []DailyClose) {
	t.Helper()

	err := database.WithTransaction(context.Background(), db.Conn(), func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.Exec(
				"INSERT INTO daily_prices (symbol, date, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?)",
				r.Symbol, r.Date, r.Close, r.Close, r.Close, r.Close, 1000,
			); err != nil {
				return fmt.Errorf("insert %s %s: %w", r.Symbol, r.Date, err)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to insert daily closes: %v", err)
	}
}
