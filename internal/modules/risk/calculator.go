// Package risk turns weighted positions into aggregate expected return, risk,
// a simplified Sharpe ratio and parametric value-at-risk.
package risk

import (
	"fmt"
	"math"

	"github.com/aristath/sentinel-analytics/internal/modules/holdings"
	"github.com/aristath/sentinel-analytics/pkg/formulas"
)

// Metrics are aggregate portfolio figures, all in percent except the ratio.
type Metrics struct {
	ExpectedReturn float64 `json:"expected_return"`
	ExpectedRisk   float64 `json:"expected_risk"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	VaR95          float64 `json:"var_95"`
}

func metricsFrom(expectedReturn, expectedRisk float64) Metrics {
	return Metrics{
		ExpectedReturn: expectedReturn,
		ExpectedRisk:   expectedRisk,
		SharpeRatio:    formulas.SimpleSharpe(expectedReturn, expectedRisk),
		VaR95:          formulas.ParametricVaR95(expectedRisk),
	}
}

// Compute evaluates positions at their own weights. Assets are treated as
// uncorrelated: risk = sqrt(Σ (w_i/100 · σ_i)²). An empty set gives zero
// metrics. Input is assumed to have passed holdings.Validate.
func Compute(positions []holdings.Position) Metrics {
	return ComputeWeights(positions, holdings.Weights(positions))
}

// ComputeWeights evaluates positions at an alternative weight vector given in
// the same order. Missing trailing weights count as 0.
func ComputeWeights(positions []holdings.Position, weights []float64) Metrics {
	var expectedReturn, variance float64
	for i, p := range positions {
		w := weightAt(weights, i) / 100
		expectedReturn += w * p.ExpectedReturn
		contribution := w * p.Risk
		variance += contribution * contribution
	}
	return metricsFrom(expectedReturn, math.Sqrt(variance))
}

// ComputeWithCovariance evaluates positions with full covariance:
// risk = sqrt(wᵀΣw), w as fractions and Σ in annualized %². A nil covariance
// falls back to the uncorrelated formula so existing callers see identical
// output.
func ComputeWithCovariance(positions []holdings.Position, weights []float64, cov [][]float64) (Metrics, error) {
	if cov == nil {
		return ComputeWeights(positions, weights), nil
	}

	n := len(positions)
	if len(cov) != n {
		return Metrics{}, fmt.Errorf("covariance matrix size %d doesn't match positions count %d", len(cov), n)
	}
	for i := range cov {
		if len(cov[i]) != n {
			return Metrics{}, fmt.Errorf("covariance matrix row %d has size %d, expected %d", i, len(cov[i]), n)
		}
		if cov[i][i] < 0 {
			return Metrics{}, fmt.Errorf("covariance matrix has negative variance at %d", i)
		}
	}

	w := make([]float64, n)
	var expectedReturn float64
	for i, p := range positions {
		w[i] = weightAt(weights, i) / 100
		expectedReturn += w[i] * p.ExpectedReturn
	}

	return metricsFrom(expectedReturn, formulas.PortfolioVolatility(w, cov)), nil
}

// DiagonalCovariance builds Σ = diag(σ_i²) from per-asset risk. Using it with
// ComputeWithCovariance reproduces Compute exactly.
func DiagonalCovariance(positions []holdings.Position) [][]float64 {
	cov := make([][]float64, len(positions))
	for i, p := range positions {
		cov[i] = make([]float64, len(positions))
		cov[i][i] = p.Risk * p.Risk
	}
	return cov
}

func weightAt(weights []float64, i int) float64 {
	if i < len(weights) {
		return weights[i]
	}
	return 0
}
