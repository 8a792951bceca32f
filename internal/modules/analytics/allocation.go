package analytics

import (
	"github.com/aristath/sentinel-analytics/internal/modules/holdings"
)

// SectorWeight is the total weight of one sector.
type SectorWeight struct {
	Sector string  `json:"sector"`
	Weight float64 `json:"weight"`
}

// SectorAllocation sums weights per sector in first-seen order. weights is
// indexed like positions; nil uses the positions' own weights.
func SectorAllocation(positions []holdings.Position, weights []float64) []SectorWeight {
	if weights == nil {
		weights = holdings.Weights(positions)
	}

	index := make(map[string]int)
	out := make([]SectorWeight, 0)
	for i, p := range positions {
		var w float64
		if i < len(weights) {
			w = weights[i]
		}
		k, ok := index[p.Sector]
		if !ok {
			k = len(out)
			index[p.Sector] = k
			out = append(out, SectorWeight{Sector: p.Sector})
		}
		out[k].Weight += w
	}
	return out
}

// SectorComparison contrasts a sector's current and optimized weight.
type SectorComparison struct {
	Sector    string  `json:"sector"`
	Current   float64 `json:"current"`
	Optimized float64 `json:"optimized"`
	Change    float64 `json:"change"`
}

// CompareAllocations reports per-sector current vs optimized weight.
func CompareAllocations(positions []holdings.Position, optimized []float64) []SectorComparison {
	current := SectorAllocation(positions, nil)
	proposed := SectorAllocation(positions, optimized)

	out := make([]SectorComparison, len(current))
	for i, c := range current {
		out[i] = SectorComparison{
			Sector:    c.Sector,
			Current:   c.Weight,
			Optimized: proposed[i].Weight,
			Change:    proposed[i].Weight - c.Weight,
		}
	}
	return out
}
