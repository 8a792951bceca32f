package optimization

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/sentinel-analytics/internal/modules/holdings"
	"github.com/aristath/sentinel-analytics/internal/modules/rebalancing"
	"github.com/aristath/sentinel-analytics/internal/modules/risk"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Run outcomes reported to a RunRecorder.
const (
	OutcomeSuccess    = "success"
	OutcomeInvalid    = "invalid"
	OutcomeInfeasible = "infeasible"
	OutcomeTimeout    = "timeout"
	OutcomeError      = "error"
)

// RunRecorder observes finished solver runs.
type RunRecorder interface {
	RecordRun(solver, outcome string, duration time.Duration)
}

// ServiceConfig holds the service defaults.
type ServiceConfig struct {
	DefaultSolver string
	Timeout       time.Duration
}

// Service orchestrates an optimization run: validate, measure the current
// allocation, solve, measure the proposal and derive rebalance actions.
type Service struct {
	solvers  map[string]Solver
	config   ServiceConfig
	recorder RunRecorder
	now      func() time.Time
	log      zerolog.Logger
}

// NewService creates a service with the heuristic, mean-variance and HRP
// solvers registered. recorder may be nil.
func NewService(config ServiceConfig, recorder RunRecorder, log zerolog.Logger) *Service {
	if config.DefaultSolver == "" {
		config.DefaultSolver = SolverHeuristic
	}
	s := &Service{
		solvers:  make(map[string]Solver),
		config:   config,
		recorder: recorder,
		now:      time.Now,
		log:      log.With().Str("service", "optimization").Logger(),
	}
	s.RegisterSolver(SolverHeuristic, NewHeuristicOptimizer())
	s.RegisterSolver(SolverMeanVariance, NewMeanVarianceOptimizer())
	s.RegisterSolver(SolverHRP, NewHRPOptimizer())
	return s
}

// RegisterSolver adds or replaces a named solver.
func (s *Service) RegisterSolver(name string, solver Solver) {
	s.solvers[name] = solver
}

// Solvers lists registered solver names in sorted order.
func (s *Service) Solvers() []string {
	names := make([]string, 0, len(s.solvers))
	for name := range s.solvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultSolver is the solver used when a request names none.
func (s *Service) DefaultSolver() string {
	return s.config.DefaultSolver
}

// Run executes one optimization. Errors wrap ErrInvalidPosition,
// ErrInvalidObjective, ErrInvalidRiskTolerance, ErrUnknownSolver,
// ErrNoFeasibleAllocation, ErrSolverTimeout or ErrCovarianceRequired.
func (s *Service) Run(ctx context.Context, req Request) (*Run, error) {
	solverName := req.Solver
	if solverName == "" {
		solverName = s.config.DefaultSolver
	}

	start := s.now()
	run, err := s.run(ctx, req, solverName)
	s.record(solverName, err, s.now().Sub(start))
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("solver", solverName).
			Str("objective", string(req.Objective)).
			Int("risk_tolerance", req.RiskTolerance).
			Msg("Optimization failed")
		return nil, err
	}

	s.log.Info().
		Str("run_id", run.ID).
		Str("solver", solverName).
		Str("objective", string(run.Objective)).
		Int("risk_tolerance", run.RiskTolerance).
		Int("actions", len(run.Actions)).
		Float64("expected_return", run.Result.ExpectedReturn).
		Float64("expected_risk", run.Result.ExpectedRisk).
		Msg("Optimization completed")
	return run, nil
}

func (s *Service) run(ctx context.Context, req Request, solverName string) (*Run, error) {
	if err := holdings.Validate(req.Positions); err != nil {
		return nil, err
	}
	if !req.Objective.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidObjective, req.Objective)
	}
	if err := ValidateRiskTolerance(req.RiskTolerance); err != nil {
		return nil, err
	}
	solver, ok := s.solvers[solverName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSolver, solverName)
	}

	positions := make([]holdings.Position, len(req.Positions))
	copy(positions, req.Positions)

	current, err := risk.ComputeWithCovariance(positions, holdings.Weights(positions), req.Covariance)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCovariance, err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.config.Timeout
	}
	solveCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	weights, err := solver.Solve(solveCtx, Problem{
		Positions:     positions,
		Objective:     req.Objective,
		RiskTolerance: req.RiskTolerance,
		Covariance:    req.Covariance,
		MaxWeight:     req.MaxWeight,
	})
	if err != nil {
		if IsTimeout(err) {
			return nil, ErrSolverTimeout
		}
		return nil, err
	}
	if len(weights) != len(positions) {
		return nil, fmt.Errorf("%w: solver %s returned %d weights for %d positions", ErrNoFeasibleAllocation, solverName, len(weights), len(positions))
	}

	optimized, err := risk.ComputeWithCovariance(positions, weights, req.Covariance)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCovariance, err)
	}

	allocation := make(map[string]float64, len(positions))
	for i, p := range positions {
		allocation[p.Symbol] = weights[i]
	}

	return &Run{
		ID:            uuid.New().String(),
		Objective:     req.Objective,
		RiskTolerance: req.RiskTolerance,
		Solver:        solverName,
		Current:       current,
		Result: OptimizationResult{
			Allocation:     allocation,
			ExpectedReturn: optimized.ExpectedReturn,
			ExpectedRisk:   optimized.ExpectedRisk,
			SharpeRatio:    optimized.SharpeRatio,
			VaR95:          optimized.VaR95,
		},
		Weights:     weights,
		Actions:     rebalancing.Diff(positions, weights),
		Comparison:  Compare(current, optimized),
		CompletedAt: s.now().UTC(),
	}, nil
}

// Compare reports the percent change of optimized against current. A zero
// baseline gives 0.
func Compare(current, optimized risk.Metrics) Comparison {
	var c Comparison
	if current.ExpectedRisk != 0 {
		c.RiskReduction = (current.ExpectedRisk - optimized.ExpectedRisk) / current.ExpectedRisk * 100
	}
	if current.ExpectedReturn != 0 {
		c.ReturnImprovement = (optimized.ExpectedReturn - current.ExpectedReturn) / current.ExpectedReturn * 100
	}
	return c
}

// Outcome classifies a run error for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case IsTimeout(err):
		return OutcomeTimeout
	case errors.Is(err, ErrNoFeasibleAllocation):
		return OutcomeInfeasible
	case errors.Is(err, holdings.ErrInvalidPosition),
		errors.Is(err, ErrInvalidObjective),
		errors.Is(err, ErrInvalidRiskTolerance),
		errors.Is(err, ErrUnknownSolver),
		errors.Is(err, ErrCovarianceRequired),
		errors.Is(err, ErrInvalidCovariance):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}

func (s *Service) record(solver string, err error, d time.Duration) {
	if s.recorder != nil {
		s.recorder.RecordRun(solver, Outcome(err), d)
	}
}
