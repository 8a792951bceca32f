package session

import (
	"context"

	"github.com/aristath/sentinel-analytics/internal/modules/analytics"
	"github.com/aristath/sentinel-analytics/pkg/formulas"
)

// ReturnsProvider loads aligned daily return series.
type ReturnsProvider interface {
	ReturnSeries(ctx context.Context, symbols []string, days int) (map[string][]float64, error)
}

// HistoryCovariance estimates covariance from daily returns over a lookback
// window, annualized and shrunk.
type HistoryCovariance struct {
	returns ReturnsProvider
	days    int
}

// NewHistoryCovariance creates a covariance source over returns.
func NewHistoryCovariance(returns ReturnsProvider, days int) *HistoryCovariance {
	return &HistoryCovariance{returns: returns, days: days}
}

// Covariance implements CovarianceSource.
func (c *HistoryCovariance) Covariance(ctx context.Context, symbols []string) ([][]float64, error) {
	series, err := c.returns.ReturnSeries(ctx, symbols, c.days)
	if err != nil {
		return nil, err
	}
	return analytics.CovarianceMatrix(symbols, series, formulas.TradingDaysPerYear)
}
