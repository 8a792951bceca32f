// Package rebalancing turns a current and a target allocation into buy and
// sell recommendations.
package rebalancing

import (
	"github.com/aristath/sentinel-analytics/internal/modules/holdings"
	"github.com/shopspring/decimal"
)

// Action is the recommended trade direction.
type Action string

const (
	Buy  Action = "Buy"
	Sell Action = "Sell"
	Hold Action = "Hold"
)

// MaterialityThreshold is the smallest weight change, in percentage points,
// worth acting on. Changes of exactly this size are not reported.
const MaterialityThreshold = 1.0

// RebalanceAction is one recommended trade.
type RebalanceAction struct {
	Symbol        string  `json:"symbol"`
	CurrentWeight float64 `json:"current_weight"`
	TargetWeight  float64 `json:"target_weight"`
	Change        float64 `json:"change"`
	Action        Action  `json:"action"`
}

// Diff emits an action for every position whose target differs from its
// current weight by more than MaterialityThreshold. Output follows input
// order. Missing target entries count as 0; extra entries are ignored.
func Diff(current []holdings.Position, target []float64) []RebalanceAction {
	return DiffWithThreshold(current, target, MaterialityThreshold)
}

// DiffWithThreshold is Diff with a caller-chosen materiality level. A
// negative threshold is treated as 0.
func DiffWithThreshold(current []holdings.Position, target []float64, threshold float64) []RebalanceAction {
	limit := decimal.NewFromFloat(threshold)
	if limit.IsNegative() {
		limit = decimal.Zero
	}

	actions := make([]RebalanceAction, 0)
	for i, p := range current {
		var t float64
		if i < len(target) {
			t = target[i]
		}

		change := decimal.NewFromFloat(t).Sub(decimal.NewFromFloat(p.Weight))
		if !change.Abs().GreaterThan(limit) {
			continue
		}

		action := Buy
		if change.IsNegative() {
			action = Sell
		}
		actions = append(actions, RebalanceAction{
			Symbol:        p.Symbol,
			CurrentWeight: p.Weight,
			TargetWeight:  t,
			Change:        change.InexactFloat64(),
			Action:        action,
		})
	}
	return actions
}

// DiffAllocation is Diff against a symbol-keyed target.
func DiffAllocation(current []holdings.Position, allocation map[string]float64) []RebalanceAction {
	target := make([]float64, len(current))
	for i, p := range current {
		target[i] = allocation[p.Symbol]
	}
	return Diff(current, target)
}

// ActionSummary aggregates a list of actions.
type ActionSummary struct {
	Buys     int     `json:"buys"`
	Sells    int     `json:"sells"`
	Turnover float64 `json:"turnover"`
}

// Summary counts buys and sells and computes turnover as Σ|change|/2.
func Summary(actions []RebalanceAction) ActionSummary {
	var s ActionSummary
	total := decimal.Zero
	for _, a := range actions {
		switch a.Action {
		case Buy:
			s.Buys++
		case Sell:
			s.Sells++
		}
		total = total.Add(decimal.NewFromFloat(a.Change).Abs())
	}
	s.Turnover = total.Div(decimal.NewFromInt(2)).InexactFloat64()
	return s
}
