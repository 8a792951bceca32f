package optimization

import (
	"context"

	"github.com/aristath/sentinel-analytics/internal/modules/holdings"
)

// HeuristicOptimizer tilts an equal-weight portfolio towards the objective
// and damps risky positions according to risk tolerance. It is deterministic
// and never needs a covariance matrix.
type HeuristicOptimizer struct{}

// NewHeuristicOptimizer creates a new heuristic optimizer.
func NewHeuristicOptimizer() *HeuristicOptimizer {
	return &HeuristicOptimizer{}
}

// Solve implements Solver.
func (h *HeuristicOptimizer) Solve(ctx context.Context, p Problem) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrSolverTimeout
	}
	if !p.Objective.Valid() {
		return nil, ErrInvalidObjective
	}
	if err := ValidateRiskTolerance(p.RiskTolerance); err != nil {
		return nil, err
	}
	return Normalize(HeuristicRawWeights(p.Positions, p.Objective, p.RiskTolerance)), nil
}

// HeuristicRawWeights returns the un-normalized weights: 100/n, then the
// objective tilt, then the tolerance damping.
func HeuristicRawWeights(positions []holdings.Position, objective Objective, riskTolerance int) []float64 {
	n := len(positions)
	raw := make([]float64, n)
	if n == 0 {
		return raw
	}

	base := 100 / float64(n)
	damping := 1 - float64(riskTolerance)/10
	for i, p := range positions {
		w := base
		switch objective {
		case MaxReturn:
			w *= 1 + p.ExpectedReturn/100
		case MinRisk:
			w *= 1 / (1 + p.Risk/100)
		case MaxSharpe:
			var sharpe float64
			if p.Risk > 0 {
				sharpe = p.ExpectedReturn / p.Risk
			}
			w *= 1 + sharpe
		}
		w *= 1 - damping*p.Risk/100
		raw[i] = w
	}
	return raw
}
