// Package optimization proposes target allocations for a holdings set.
package optimization

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/sentinel-analytics/internal/modules/holdings"
	"github.com/aristath/sentinel-analytics/internal/modules/rebalancing"
	"github.com/aristath/sentinel-analytics/internal/modules/risk"
)

var (
	ErrInvalidObjective     = errors.New("invalid objective")
	ErrInvalidRiskTolerance = errors.New("invalid risk tolerance")
	ErrUnknownSolver        = errors.New("unknown solver")
	ErrNoFeasibleAllocation = errors.New("no feasible allocation")
	ErrSolverTimeout        = errors.New("solver timed out")
	ErrCovarianceRequired   = errors.New("covariance matrix required")
	ErrInvalidCovariance    = errors.New("invalid covariance matrix")
)

// Objective selects what the optimizer favours.
type Objective string

const (
	MaxSharpe Objective = "max_sharpe"
	MaxReturn Objective = "max_return"
	MinRisk   Objective = "min_risk"
)

// ParseObjective accepts canonical names and the short forms sharpe, return
// and risk.
func ParseObjective(s string) (Objective, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "max_sharpe", "sharpe":
		return MaxSharpe, nil
	case "max_return", "return":
		return MaxReturn, nil
	case "min_risk", "risk":
		return MinRisk, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidObjective, s)
}

// Valid reports whether o is one of the three known objectives.
func (o Objective) Valid() bool {
	return o == MaxSharpe || o == MaxReturn || o == MinRisk
}

const (
	MinRiskTolerance     = 1
	MaxRiskTolerance     = 10
	DefaultRiskTolerance = 5
)

// ValidateRiskTolerance rejects values outside 1..10.
func ValidateRiskTolerance(tol int) error {
	if tol < MinRiskTolerance || tol > MaxRiskTolerance {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidRiskTolerance, tol, MinRiskTolerance, MaxRiskTolerance)
	}
	return nil
}

// Solver names
const (
	SolverHeuristic    = "heuristic"
	SolverMeanVariance = "mean_variance"
	SolverHRP          = "hrp"
)

// Problem is the input to a Solver.
type Problem struct {
	Positions     []holdings.Position
	Objective     Objective
	RiskTolerance int
	// Covariance in annualized %², indexed like Positions. Optional for the
	// heuristic solver.
	Covariance [][]float64
	// MaxWeight caps a single position in percent. Zero means 100.
	MaxWeight float64
}

func (p Problem) maxWeight() float64 {
	if p.MaxWeight <= 0 || p.MaxWeight > 100 {
		return 100
	}
	return p.MaxWeight
}

func validateCovariance(cov [][]float64, n int) error {
	if cov == nil {
		return ErrCovarianceRequired
	}
	if len(cov) != n {
		return fmt.Errorf("%w: size %d doesn't match positions count %d", ErrInvalidCovariance, len(cov), n)
	}
	for i := range cov {
		if len(cov[i]) != n {
			return fmt.Errorf("%w: row %d has size %d, expected %d", ErrInvalidCovariance, i, len(cov[i]), n)
		}
		if cov[i][i] < 0 {
			return fmt.Errorf("%w: negative variance at %d", ErrInvalidCovariance, i)
		}
	}
	return nil
}

// Solver produces target weights in percent, in input order, summing to 100.
type Solver interface {
	Solve(ctx context.Context, p Problem) ([]float64, error)
}

// OptimizationResult is the proposed allocation with its metrics.
type OptimizationResult struct {
	Allocation     map[string]float64 `json:"allocation"`
	ExpectedReturn float64            `json:"expected_return"`
	ExpectedRisk   float64            `json:"expected_risk"`
	SharpeRatio    float64            `json:"sharpe_ratio"`
	VaR95          float64            `json:"var_95"`
}

// Comparison is the percent change of the proposal against current holdings.
type Comparison struct {
	RiskReduction     float64 `json:"risk_reduction"`
	ReturnImprovement float64 `json:"return_improvement"`
}

// Request describes one optimization run.
type Request struct {
	Positions     []holdings.Position
	Objective     Objective
	RiskTolerance int
	// Solver name; empty selects the service default.
	Solver     string
	Covariance [][]float64
	MaxWeight  float64
	// Timeout bounds the solve step; zero uses the service default.
	Timeout time.Duration
}

// Run is a completed optimization.
type Run struct {
	ID            string                        `json:"id"`
	Objective     Objective                     `json:"objective"`
	RiskTolerance int                           `json:"risk_tolerance"`
	Solver        string                        `json:"solver"`
	Current       risk.Metrics                  `json:"current"`
	Result        OptimizationResult            `json:"result"`
	Weights       []float64                     `json:"weights"`
	Actions       []rebalancing.RebalanceAction `json:"actions"`
	Comparison    Comparison                    `json:"comparison"`
	CompletedAt   time.Time                     `json:"completed_at"`
}
