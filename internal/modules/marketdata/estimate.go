package marketdata

import (
	"context"

	"github.com/aristath/sentinel-analytics/pkg/formulas"
)

// Estimate is a history-derived view of one symbol, in percent.
type Estimate struct {
	Symbol         string  `json:"symbol"`
	ExpectedReturn float64 `json:"expected_return"`
	Risk           float64 `json:"risk"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	Observations   int     `json:"observations"`

	// RSI is the 14-day relative strength index of the last close, if enough
	// history exists.
	RSI *float64 `json:"rsi,omitempty"`
}

// Estimate annualizes the mean and volatility of the last days daily returns.
func (h *HistoryDB) Estimate(ctx context.Context, symbol string, days int) (*Estimate, error) {
	prices, err := h.GetDailyPrices(ctx, symbol, days+1)
	if err != nil {
		return nil, err
	}
	if len(prices) < 3 {
		return nil, unavailable("%s has %d prices", symbol, len(prices))
	}

	closes := make([]float64, len(prices))
	for i, p := range prices {
		closes[i] = p.Close
	}
	returns := formulas.CalculateReturns(closes)

	est := &Estimate{
		Symbol:         symbol,
		ExpectedReturn: formulas.AnnualizedReturn(returns) * 100,
		Risk:           formulas.AnnualizedVolatility(returns) * 100,
		Observations:   len(returns),
		RSI:            formulas.CalculateRSI(closes, formulas.DefaultRSILength),
	}
	if dd := formulas.CalculateMaxDrawdown(closes); dd != nil {
		est.MaxDrawdown = *dd * 100
	}
	return est, nil
}
