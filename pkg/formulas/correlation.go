package formulas

import (
	"fmt"
	"math"
)

// CorrelationMatrixFromCovariance converts a covariance matrix to a correlation
// matrix: ρ_ij = σ_ij / sqrt(σ_ii σ_jj). Assets with zero variance correlate 0
// with everything but themselves.
func CorrelationMatrixFromCovariance(cov [][]float64) ([][]float64, error) {
	n := len(cov)
	if n == 0 {
		return nil, fmt.Errorf("empty covariance matrix")
	}
	for i := range cov {
		if len(cov[i]) != n {
			return nil, fmt.Errorf("covariance matrix is not square: row %d has %d columns, expected %d", i, len(cov[i]), n)
		}
		if cov[i][i] < 0 {
			return nil, fmt.Errorf("negative variance %.6f at index %d", cov[i][i], i)
		}
	}

	corr := make([][]float64, n)
	for i := 0; i < n; i++ {
		corr[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				corr[i][j] = 1
				continue
			}
			denom := math.Sqrt(cov[i][i] * cov[j][j])
			if denom == 0 {
				continue
			}
			corr[i][j] = Clamp(cov[i][j]/denom, -1, 1)
		}
	}
	return corr, nil
}

// CorrelationToDistance maps correlations to the metric d_ij = sqrt(2(1 - ρ_ij))
// used by hierarchical clustering.
func CorrelationToDistance(corr [][]float64) [][]float64 {
	dist := make([][]float64, len(corr))
	for i := range corr {
		dist[i] = make([]float64, len(corr[i]))
		for j := range corr[i] {
			dist[i][j] = math.Sqrt(math.Max(0, 2*(1-corr[i][j])))
		}
	}
	return dist
}
