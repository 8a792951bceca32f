// Package holdings provides the in-memory holdings model: weighted positions with
// per-asset return and risk estimates, plus the validation that guards every
// component downstream of it.
package holdings

// WeightTolerance is the allowed deviation of the total weight from 100.
const WeightTolerance = 0.01

// Position is one holding in the optimizable set. All numeric fields are
// percentages.
type Position struct {
	Symbol         string  `json:"symbol"`
	Name           string  `json:"name"`
	Weight         float64 `json:"weight"`
	ExpectedReturn float64 `json:"expected_return"`
	Risk           float64 `json:"risk"`
	Sector         string  `json:"sector"`
}

// DemoPositions is the five-asset portfolio the optimizer panel starts from.
func DemoPositions() []Position {
	return []Position{
		{Symbol: "AAPL", Name: "Apple Inc.", Weight: 25, ExpectedReturn: 12.5, Risk: 22.1, Sector: "Technology"},
		{Symbol: "MSFT", Name: "Microsoft Corp.", Weight: 20, ExpectedReturn: 11.8, Risk: 19.5, Sector: "Technology"},
		{Symbol: "GOOGL", Name: "Alphabet Inc.", Weight: 15, ExpectedReturn: 13.2, Risk: 24.3, Sector: "Technology"},
		{Symbol: "JNJ", Name: "Johnson & Johnson", Weight: 20, ExpectedReturn: 8.5, Risk: 15.2, Sector: "Healthcare"},
		{Symbol: "JPM", Name: "JPMorgan Chase", Weight: 20, ExpectedReturn: 10.2, Risk: 28.7, Sector: "Finance"},
	}
}

// Weights returns the weight vector of positions in input order.
func Weights(positions []Position) []float64 {
	weights := make([]float64, len(positions))
	for i, p := range positions {
		weights[i] = p.Weight
	}
	return weights
}

// Symbols returns the symbols of positions in input order.
func Symbols(positions []Position) []string {
	symbols := make([]string, len(positions))
	for i, p := range positions {
		symbols[i] = p.Symbol
	}
	return symbols
}

// TotalWeight sums the weights of positions.
func TotalWeight(positions []Position) float64 {
	var total float64
	for _, p := range positions {
		total += p.Weight
	}
	return total
}
