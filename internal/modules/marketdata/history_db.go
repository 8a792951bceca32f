// Package marketdata reads daily price history and derives return series and
// per-symbol estimates from it. It never writes holdings or results.
package marketdata

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aristath/sentinel-analytics/internal/modules/analytics"
	"github.com/aristath/sentinel-analytics/internal/utils"
	"github.com/rs/zerolog"
)

// Schema creates the daily_prices table read by HistoryDB.
const Schema = `
CREATE TABLE IF NOT EXISTS daily_prices (
	symbol TEXT NOT NULL,
	date   TEXT NOT NULL,
	open   REAL NOT NULL,
	high   REAL NOT NULL,
	low    REAL NOT NULL,
	close  REAL NOT NULL,
	volume INTEGER,
	PRIMARY KEY (symbol, date)
);
`

// DailyPrice represents a daily OHLCV price point
type DailyPrice struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume *int64  `json:"volume,omitempty"`
}

// HistoryDB provides access to historical price data
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryDB creates a new history database accessor
func NewHistoryDB(db *sql.DB, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

// GetDailyPrices fetches the latest limit daily prices for a symbol, oldest
// first.
func (h *HistoryDB) GetDailyPrices(ctx context.Context, symbol string, limit int) ([]DailyPrice, error) {
	if limit <= 0 {
		return []DailyPrice{}, nil
	}

	query := `
		SELECT date, open, high, low, close, volume FROM (
			SELECT date, open, high, low, close, volume
			FROM daily_prices
			WHERE symbol = ?
			ORDER BY date DESC
			LIMIT ?
		) ORDER BY date ASC
	`

	done := utils.MeasureDBQuery("daily_prices", h.log)
	rows, err := h.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	prices := make([]DailyPrice, 0, limit)
	for rows.Next() {
		var p DailyPrice
		var volume sql.NullInt64

		if err := rows.Scan(&p.Date, &p.Open, &p.High, &p.Low, &p.Close, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		if volume.Valid {
			v := volume.Int64
			p.Volume = &v
		}
		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	done(len(prices))
	return prices, nil
}

// Symbols lists every symbol with at least one stored price.
func (h *HistoryDB) Symbols(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, "SELECT DISTINCT symbol FROM daily_prices ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

func unavailable(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", analytics.ErrHistoryUnavailable, fmt.Sprintf(format, args...))
}
