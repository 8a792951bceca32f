package marketdata

import (
	"context"
	"fmt"
	"sort"

	"github.com/aristath/sentinel-analytics/internal/utils"
	"github.com/aristath/sentinel-analytics/pkg/formulas"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentLoads bounds parallel symbol queries.
const maxConcurrentLoads = 8

// ReturnSeries loads up to days+1 closes per symbol concurrently, keeps only
// the dates every symbol has, and returns simple daily returns on those dates.
func (h *HistoryDB) ReturnSeries(ctx context.Context, symbols []string, days int) (map[string][]float64, error) {
	if len(symbols) == 0 {
		return nil, unavailable("no symbols requested")
	}
	if days < 1 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}
	defer utils.OperationTimer("return_series", h.log)()

	loaded := make([][]DailyPrice, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			prices, err := h.GetDailyPrices(gctx, symbol, days+1)
			if err != nil {
				return fmt.Errorf("load %s: %w", symbol, err)
			}
			loaded[i] = prices
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dates := commonDates(loaded)
	if len(dates) < 3 {
		return nil, unavailable("only %d common price dates across %d symbols", len(dates), len(symbols))
	}

	out := make(map[string][]float64, len(symbols))
	for i, symbol := range symbols {
		closes := closesOn(loaded[i], dates)
		out[symbol] = formulas.CalculateReturns(closes)
	}

	h.log.Debug().
		Int("symbols", len(symbols)).
		Int("common_dates", len(dates)).
		Msg("Built aligned return series")

	return out, nil
}

// commonDates returns the ascending dates present in every series.
func commonDates(series [][]DailyPrice) []string {
	counts := make(map[string]int)
	for _, prices := range series {
		for _, p := range prices {
			counts[p.Date]++
		}
	}

	dates := make([]string, 0, len(counts))
	for d, c := range counts {
		if c == len(series) {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)
	return dates
}

func closesOn(prices []DailyPrice, dates []string) []float64 {
	byDate := make(map[string]float64, len(prices))
	for _, p := range prices {
		byDate[p.Date] = p.Close
	}
	closes := make([]float64, len(dates))
	for i, d := range dates {
		closes[i] = byDate[d]
	}
	return closes
}
