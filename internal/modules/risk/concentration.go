package risk

import "github.com/aristath/sentinel-analytics/internal/modules/holdings"

// Concentration summarises how concentrated a holdings set is.
type Concentration struct {
	LargestPosition string  `json:"largest_position"`
	LargestWeight   float64 `json:"largest_weight"`
	Herfindahl      float64 `json:"herfindahl"`
	LargestSector   string  `json:"largest_sector"`
	SectorWeight    float64 `json:"sector_weight"`
}

// ComputeConcentration reports the largest position, the Herfindahl index
// Σ(w/100)² and the heaviest sector. Ties keep the first in input order.
func ComputeConcentration(positions []holdings.Position) Concentration {
	var c Concentration
	sectorWeights := make(map[string]float64)
	var sectorOrder []string

	for _, p := range positions {
		w := p.Weight / 100
		c.Herfindahl += w * w
		if p.Weight > c.LargestWeight || c.LargestPosition == "" {
			c.LargestPosition = p.Symbol
			c.LargestWeight = p.Weight
		}
		if _, ok := sectorWeights[p.Sector]; !ok {
			sectorOrder = append(sectorOrder, p.Sector)
		}
		sectorWeights[p.Sector] += p.Weight
	}

	for _, sector := range sectorOrder {
		if sectorWeights[sector] > c.SectorWeight || c.LargestSector == "" {
			c.LargestSector = sector
			c.SectorWeight = sectorWeights[sector]
		}
	}

	return c
}
