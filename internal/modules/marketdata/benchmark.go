package marketdata

import (
	"context"
	"fmt"

	"github.com/aristath/sentinel-analytics/pkg/formulas"
)

// Relative compares one symbol with the benchmark over the same dates.
type Relative struct {
	Symbol string  `json:"symbol"`
	Beta   float64 `json:"beta"`
	// Alpha is annualized return minus beta times the benchmark's annualized
	// return, in percent. No risk-free rate is subtracted.
	Alpha float64 `json:"alpha"`
}

// BenchmarkReport holds per-symbol beta and alpha against one benchmark.
type BenchmarkReport struct {
	Benchmark       string     `json:"benchmark"`
	BenchmarkReturn float64    `json:"benchmark_return"`
	Observations    int        `json:"observations"`
	Symbols         []Relative `json:"symbols"`
}

// CompareToBenchmark computes beta and alpha of each symbol against
// benchmark on the dates all of them share. Symbols keep their input order.
func (h *HistoryDB) CompareToBenchmark(ctx context.Context, symbols []string, benchmark string, days int) (*BenchmarkReport, error) {
	if benchmark == "" {
		return nil, fmt.Errorf("benchmark symbol is required")
	}

	load := make([]string, 0, len(symbols)+1)
	load = append(load, benchmark)
	for _, s := range symbols {
		if s != benchmark {
			load = append(load, s)
		}
	}

	series, err := h.ReturnSeries(ctx, load, days)
	if err != nil {
		return nil, err
	}

	bench := series[benchmark]
	if formulas.Covariance(bench, bench) <= 0 {
		return nil, unavailable("benchmark %s has no return variance", benchmark)
	}
	benchReturn := formulas.AnnualizedReturn(bench)

	report := &BenchmarkReport{
		Benchmark:       benchmark,
		BenchmarkReturn: benchReturn * 100,
		Observations:    len(bench),
		Symbols:         make([]Relative, 0, len(symbols)),
	}
	for _, s := range symbols {
		returns := series[s]
		beta := formulas.Beta(returns, bench)
		report.Symbols = append(report.Symbols, Relative{
			Symbol: s,
			Beta:   beta,
			Alpha:  (formulas.AnnualizedReturn(returns) - beta*benchReturn) * 100,
		})
	}
	return report, nil
}

// Portfolio weights the per-symbol figures by weights given in percent.
// Symbols without a weight count as 0.
func (r *BenchmarkReport) Portfolio(weights map[string]float64) Relative {
	var out Relative
	for _, s := range r.Symbols {
		w := weights[s.Symbol] / 100
		out.Beta += w * s.Beta
		out.Alpha += w * s.Alpha
	}
	return out
}
