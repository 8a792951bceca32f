// Package analytics summarises correlation, covariance, sentiment and sector
// exposure for a holdings set.
package analytics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/aristath/sentinel-analytics/pkg/formulas"
	"gonum.org/v1/gonum/stat"
)

// ErrHistoryUnavailable means there isn't enough return history to compute a
// result. Callers report it as unavailable rather than inventing numbers.
var ErrHistoryUnavailable = errors.New("return history unavailable")

// DefaultHighCorrelation is the |ρ| at which a pair is flagged.
const DefaultHighCorrelation = 0.80

// Matrix is a symmetric symbol-by-symbol matrix.
type Matrix struct {
	Symbols []string    `json:"symbols"`
	Values  [][]float64 `json:"values"`
}

// At returns the entry for two symbols.
func (m Matrix) At(a, b string) (float64, bool) {
	i, j := -1, -1
	for k, s := range m.Symbols {
		if s == a {
			i = k
		}
		if s == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return 0, false
	}
	return m.Values[i][j], true
}

// CorrelationMatrix computes pairwise Pearson correlation of return series.
// Series are paired from their most recent end. Zero-variance series
// correlate 0 with everything else.
func CorrelationMatrix(symbols []string, returns map[string][]float64) (Matrix, error) {
	series, err := pairedSeries(symbols, returns)
	if err != nil {
		return Matrix{}, err
	}

	n := len(symbols)
	values := make([][]float64, n)
	for i := range values {
		values[i] = make([]float64, n)
		values[i][i] = 1
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := stat.Correlation(series[i], series[j], nil)
			if math.IsNaN(c) || math.IsInf(c, 0) {
				c = 0
			}
			c = formulas.Clamp(c, -1, 1)
			values[i][j] = c
			values[j][i] = c
		}
	}

	out := make([]string, n)
	copy(out, symbols)
	return Matrix{Symbols: out, Values: values}, nil
}

// pairedSeries trims every series to the shortest common length, keeping the
// latest observations.
func pairedSeries(symbols []string, returns map[string][]float64) ([][]float64, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: no symbols", ErrHistoryUnavailable)
	}

	length := math.MaxInt
	for _, s := range symbols {
		r, ok := returns[s]
		if !ok {
			return nil, fmt.Errorf("%w: no returns for %s", ErrHistoryUnavailable, s)
		}
		if len(r) < length {
			length = len(r)
		}
	}
	if length < 2 {
		return nil, fmt.Errorf("%w: need at least 2 paired observations, got %d", ErrHistoryUnavailable, length)
	}

	series := make([][]float64, len(symbols))
	for i, s := range symbols {
		r := returns[s]
		series[i] = r[len(r)-length:]
		for _, v := range series[i] {
			if !formulas.IsFinite(v) {
				return nil, fmt.Errorf("%w: non-finite return for %s", ErrHistoryUnavailable, s)
			}
		}
	}
	return series, nil
}

// Strength buckets a correlation coefficient.
type Strength string

const (
	StrongPositive Strength = "strong_positive"
	WeakPositive   Strength = "weak_positive"
	Neutral        Strength = "neutral"
	WeakNegative   Strength = "weak_negative"
	StrongNegative Strength = "strong_negative"
)

// StrengthOf classifies a correlation coefficient.
func StrengthOf(c float64) Strength {
	switch {
	case c > 0.5:
		return StrongPositive
	case c > 0.2:
		return WeakPositive
	case c > -0.2:
		return Neutral
	case c > -0.5:
		return WeakNegative
	default:
		return StrongNegative
	}
}

// CorrelationPair is one off-diagonal entry.
type CorrelationPair struct {
	A           string   `json:"a"`
	B           string   `json:"b"`
	Correlation float64  `json:"correlation"`
	Strength    Strength `json:"strength"`
}

// HighCorrelations lists pairs with |ρ| ≥ threshold, strongest first. A
// non-positive threshold uses DefaultHighCorrelation.
func HighCorrelations(m Matrix, threshold float64) []CorrelationPair {
	if threshold <= 0 {
		threshold = DefaultHighCorrelation
	}

	pairs := make([]CorrelationPair, 0)
	for i := range m.Symbols {
		for j := i + 1; j < len(m.Symbols); j++ {
			c := m.Values[i][j]
			if math.Abs(c) >= threshold {
				pairs = append(pairs, CorrelationPair{
					A:           m.Symbols[i],
					B:           m.Symbols[j],
					Correlation: c,
					Strength:    StrengthOf(c),
				})
			}
		}
	}

	sort.SliceStable(pairs, func(a, b int) bool {
		return math.Abs(pairs[a].Correlation) > math.Abs(pairs[b].Correlation)
	})
	return pairs
}
