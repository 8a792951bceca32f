package analytics

import (
	"fmt"
	"math"

	"github.com/aristath/sentinel-analytics/pkg/formulas"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// CovarianceMatrix estimates an annualized covariance matrix in %² from
// daily fractional returns: sample covariance (N-1), shrunk towards a
// constant-covariance target, then scaled by periodsPerYear·100². Rows follow
// symbols. periodsPerYear ≤ 0 uses formulas.TradingDaysPerYear.
func CovarianceMatrix(symbols []string, returns map[string][]float64, periodsPerYear int) ([][]float64, error) {
	series, err := pairedSeries(symbols, returns)
	if err != nil {
		return nil, err
	}
	if periodsPerYear <= 0 {
		periodsPerYear = formulas.TradingDaysPerYear
	}

	sample := sampleCovariance(series)
	shrunk, err := ledoitWolfShrinkage(sample)
	if err != nil {
		return nil, fmt.Errorf("failed to apply Ledoit-Wolf shrinkage: %w", err)
	}

	scale := float64(periodsPerYear) * 100 * 100
	n := len(symbols)
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			out[i][j] = shrunk.At(i, j) * scale
		}
	}
	return out, nil
}

// sampleCovariance builds the observation matrix (rows are days, columns are
// symbols) and lets gonum compute the N-1 covariance.
func sampleCovariance(series [][]float64) *mat.SymDense {
	n := len(series)
	length := len(series[0])
	data := mat.NewDense(length, n, nil)
	for j, s := range series {
		for i, v := range s {
			data.Set(i, j, v)
		}
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, data, nil)
	return cov
}

// ledoitWolfShrinkage shrinks a sample covariance towards the target with the
// average variance on the diagonal and the average covariance elsewhere:
// Σ = (1-δ)·S + δ·T. δ defaults to 0.2 and is estimated from the spread of the
// sample entries when there are more than two assets, capped at 0.5.
func ledoitWolfShrinkage(sample *mat.SymDense) (*mat.SymDense, error) {
	n := sample.SymmetricDim()
	if n == 0 {
		return nil, fmt.Errorf("empty covariance matrix")
	}
	if n == 1 {
		out := mat.NewSymDense(1, nil)
		out.CopySym(sample)
		return out, nil
	}

	var avgVar, avgCov float64
	for i := 0; i < n; i++ {
		avgVar += sample.At(i, i)
		for j := 0; j < n; j++ {
			if i != j {
				avgCov += sample.At(i, j)
			}
		}
	}
	avgVar /= float64(n)
	avgCov /= float64(n * (n - 1))

	target := func(i, j int) float64 {
		if i == j {
			return avgVar
		}
		if avgVar > 0 {
			return avgCov
		}
		return 0
	}

	shrinkage := 0.2
	if n > 2 && avgVar > 0 {
		var sumSqDiff, sumSample, sumSqSample float64
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				v := sample.At(i, j)
				diff := v - target(i, j)
				sumSqDiff += diff * diff
				sumSample += v
				sumSqSample += v * v
			}
		}
		count := float64(n * n)
		meanSqDiff := sumSqDiff / count
		meanSample := sumSample / count
		varSample := sumSqSample/count - meanSample*meanSample

		if varSample > 0 && meanSqDiff > 0 {
			shrinkage = math.Min(0.5, math.Max(0.0, varSample/(varSample+meanSqDiff)))
		}
	}

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, (1-shrinkage)*sample.At(i, j)+shrinkage*target(i, j))
		}
	}
	return out, nil
}
