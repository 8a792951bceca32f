package formulas

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Z95 is the one-tailed 95% quantile of the standard normal distribution.
const Z95 = 1.645

// SimpleSharpe is return divided by risk without a risk-free rate.
// Zero or negative risk gives 0 so callers never see NaN or Inf.
func SimpleSharpe(expectedReturn, expectedRisk float64) float64 {
	if expectedRisk > 0 {
		return expectedReturn / expectedRisk
	}
	return 0
}

// ParametricVaR95 is the 95% one-tailed parametric VaR for a given risk:
// no drift term and no horizon scaling.
func ParametricVaR95(expectedRisk float64) float64 {
	return expectedRisk * Z95
}

// QuadraticForm computes wᵀΣw. sigma must be len(w)×len(w); an empty w
// gives 0.
func QuadraticForm(w []float64, sigma [][]float64) float64 {
	n := len(w)
	if n == 0 {
		return 0
	}

	flat := make([]float64, 0, n*n)
	for i := 0; i < n; i++ {
		flat = append(flat, sigma[i][:n]...)
	}

	v := mat.NewVecDense(n, append([]float64(nil), w...))
	return mat.Inner(v, mat.NewDense(n, n, flat), v)
}

// PortfolioVolatility is sqrt(wᵀΣw), floored at zero for numerically
// negative results.
func PortfolioVolatility(w []float64, sigma [][]float64) float64 {
	return math.Sqrt(math.Max(QuadraticForm(w, sigma), 0))
}

// Beta is cov(asset, benchmark) / var(benchmark) over paired returns. It is 0
// when the series are too short, mismatched, or the benchmark never moves.
func Beta(asset, benchmark []float64) float64 {
	variance := Covariance(benchmark, benchmark)
	if variance <= 0 || !IsFinite(variance) {
		return 0
	}
	return Covariance(asset, benchmark) / variance
}
