package optimization

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aristath/sentinel-analytics/internal/modules/holdings"
	"github.com/aristath/sentinel-analytics/internal/modules/rebalancing"
	"github.com/aristath/sentinel-analytics/internal/modules/risk"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRun struct {
	solver  string
	outcome string
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []recordedRun
}

func (f *fakeRecorder) RecordRun(solver, outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, recordedRun{solver, outcome})
}

type blockingSolver struct{}

func (blockingSolver) Solve(ctx context.Context, _ Problem) ([]float64, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type shortSolver struct{}

func (shortSolver) Solve(context.Context, Problem) ([]float64, error) {
	return []float64{100}, nil
}

func newTestService(rec RunRecorder) *Service {
	return NewService(ServiceConfig{Timeout: time.Second}, rec, zerolog.Nop())
}

func TestService_RunHeuristic(t *testing.T) {
	rec := &fakeRecorder{}
	svc := newTestService(rec)
	demo := holdings.DemoPositions()

	run, err := svc.Run(context.Background(), Request{
		Positions:     demo,
		Objective:     MaxSharpe,
		RiskTolerance: 5,
	})
	require.NoError(t, err)

	_, err = uuid.Parse(run.ID)
	assert.NoError(t, err)
	assert.Equal(t, SolverHeuristic, run.Solver)
	assert.Equal(t, MaxSharpe, run.Objective)
	assert.Equal(t, 5, run.RiskTolerance)
	assert.False(t, run.CompletedAt.IsZero())

	assert.Equal(t, risk.Compute(demo), run.Current)
	assert.Equal(t, []float64{20.48, 21.31, 19.94, 21.19, 17.08}, run.Weights)
	assert.Equal(t, 20.48, run.Result.Allocation["AAPL"])
	assert.Len(t, run.Result.Allocation, len(demo))

	optimized := risk.ComputeWeights(demo, run.Weights)
	assert.Equal(t, optimized.ExpectedReturn, run.Result.ExpectedReturn)
	assert.Equal(t, optimized.ExpectedRisk, run.Result.ExpectedRisk)
	assert.Equal(t, rebalancing.Diff(demo, run.Weights), run.Actions)
	assert.Equal(t, Compare(run.Current, optimized), run.Comparison)

	assert.Equal(t, []recordedRun{{SolverHeuristic, OutcomeSuccess}}, rec.runs)
}

func TestService_RunWithCovariance(t *testing.T) {
	svc := newTestService(nil)
	positions := twoAssets(10, 10)

	run, err := svc.Run(context.Background(), Request{
		Positions:     positions,
		Objective:     MinRisk,
		RiskTolerance: 5,
		Solver:        SolverMeanVariance,
		Covariance:    twoAssetCov,
	})
	require.NoError(t, err)

	assert.InDelta(t, 80.0, run.Result.Allocation["A"], 0.5)
	assert.Greater(t, run.Comparison.RiskReduction, 0.0)
	require.Len(t, run.Actions, 2)
	assert.Equal(t, rebalancing.Buy, run.Actions[0].Action)
	assert.Equal(t, rebalancing.Sell, run.Actions[1].Action)
}

func TestService_RunHRP(t *testing.T) {
	svc := newTestService(nil)

	run, err := svc.Run(context.Background(), Request{
		Positions:     twoAssets(10, 10),
		Objective:     MaxReturn,
		RiskTolerance: 2,
		Solver:        SolverHRP,
		Covariance:    twoAssetCov,
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{80, 20}, run.Weights)
}

func TestService_RunErrors(t *testing.T) {
	rec := &fakeRecorder{}
	svc := newTestService(rec)
	demo := holdings.DemoPositions()

	tests := []struct {
		name    string
		req     Request
		target  error
		outcome string
	}{
		{
			name:    "invalid positions",
			req:     Request{Positions: []holdings.Position{{Symbol: "A", Weight: -1}}, Objective: MinRisk, RiskTolerance: 5},
			target:  holdings.ErrInvalidPosition,
			outcome: OutcomeInvalid,
		},
		{
			name:    "invalid objective",
			req:     Request{Positions: demo, Objective: "moon", RiskTolerance: 5},
			target:  ErrInvalidObjective,
			outcome: OutcomeInvalid,
		},
		{
			name:    "invalid tolerance",
			req:     Request{Positions: demo, Objective: MinRisk, RiskTolerance: 0},
			target:  ErrInvalidRiskTolerance,
			outcome: OutcomeInvalid,
		},
		{
			name:    "unknown solver",
			req:     Request{Positions: demo, Objective: MinRisk, RiskTolerance: 5, Solver: "quantum"},
			target:  ErrUnknownSolver,
			outcome: OutcomeInvalid,
		},
		{
			name:    "covariance required",
			req:     Request{Positions: demo, Objective: MinRisk, RiskTolerance: 5, Solver: SolverMeanVariance},
			target:  ErrCovarianceRequired,
			outcome: OutcomeInvalid,
		},
		{
			name:    "infeasible cap",
			req:     Request{Positions: demo, Objective: MinRisk, RiskTolerance: 5, Solver: SolverHRP, Covariance: risk.DiagonalCovariance(demo), MaxWeight: 10},
			target:  ErrNoFeasibleAllocation,
			outcome: OutcomeInfeasible,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, err := svc.Run(context.Background(), tt.req)
			assert.Nil(t, run)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
			assert.Equal(t, tt.outcome, Outcome(err))
		})
	}
	assert.Len(t, rec.runs, len(tests))
}

func TestService_Timeout(t *testing.T) {
	rec := &fakeRecorder{}
	svc := newTestService(rec)
	svc.RegisterSolver("slow", blockingSolver{})

	start := time.Now()
	_, err := svc.Run(context.Background(), Request{
		Positions:     holdings.DemoPositions(),
		Objective:     MinRisk,
		RiskTolerance: 5,
		Solver:        "slow",
		Timeout:       20 * time.Millisecond,
	})

	assert.ErrorIs(t, err, ErrSolverTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []recordedRun{{"slow", OutcomeTimeout}}, rec.runs)
}

func TestService_CancelledSolveReportsTimeout(t *testing.T) {
	rec := &fakeRecorder{}
	svc := newTestService(rec)
	svc.RegisterSolver("slow", blockingSolver{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := svc.Run(ctx, Request{
		Positions:     holdings.DemoPositions(),
		Objective:     MinRisk,
		RiskTolerance: 5,
		Solver:        "slow",
	})

	assert.ErrorIs(t, err, ErrSolverTimeout)
	assert.Equal(t, []recordedRun{{"slow", OutcomeTimeout}}, rec.runs)
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(ErrSolverTimeout))
	assert.True(t, IsTimeout(fmt.Errorf("solve: %w", context.DeadlineExceeded)))
	assert.True(t, IsTimeout(context.Canceled))
	assert.False(t, IsTimeout(ErrNoFeasibleAllocation))
	assert.False(t, IsTimeout(nil))
}

func TestNewService_RegistersBuiltInSolvers(t *testing.T) {
	svc := NewService(ServiceConfig{}, nil, zerolog.Nop())
	assert.Equal(t, []string{SolverHeuristic, SolverHRP, SolverMeanVariance}, svc.Solvers())
	assert.Equal(t, SolverHeuristic, svc.DefaultSolver())
}

func TestService_RejectsSolverWithWrongLength(t *testing.T) {
	svc := newTestService(nil)
	svc.RegisterSolver("short", shortSolver{})

	_, err := svc.Run(context.Background(), Request{
		Positions:     holdings.DemoPositions(),
		Objective:     MinRisk,
		RiskTolerance: 5,
		Solver:        "short",
	})
	assert.ErrorIs(t, err, ErrNoFeasibleAllocation)
}

func TestService_DoesNotMutateInput(t *testing.T) {
	svc := newTestService(nil)
	demo := holdings.DemoPositions()
	before := holdings.DemoPositions()

	_, err := svc.Run(context.Background(), Request{Positions: demo, Objective: MaxReturn, RiskTolerance: 9})
	require.NoError(t, err)
	assert.Equal(t, before, demo)
}

func TestService_Solvers(t *testing.T) {
	svc := newTestService(nil)
	assert.Equal(t, []string{SolverHeuristic, SolverHRP, SolverMeanVariance}, svc.Solvers())
	assert.Equal(t, SolverHeuristic, svc.DefaultSolver())
}

func TestCompare(t *testing.T) {
	c := Compare(
		risk.Metrics{ExpectedReturn: 10, ExpectedRisk: 20},
		risk.Metrics{ExpectedReturn: 11, ExpectedRisk: 15},
	)
	assert.InDelta(t, 25.0, c.RiskReduction, 1e-9)
	assert.InDelta(t, 10.0, c.ReturnImprovement, 1e-9)

	assert.Equal(t, Comparison{}, Compare(risk.Metrics{}, risk.Metrics{ExpectedReturn: 5, ExpectedRisk: 5}))
}

func TestParseObjective(t *testing.T) {
	tests := []struct {
		input    string
		expected Objective
	}{
		{"max_sharpe", MaxSharpe},
		{"sharpe", MaxSharpe},
		{"MAX_RETURN", MaxReturn},
		{"return", MaxReturn},
		{" min_risk ", MinRisk},
		{"risk", MinRisk},
	}
	for _, tt := range tests {
		got, err := ParseObjective(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.expected, got)
	}

	_, err := ParseObjective("yolo")
	assert.ErrorIs(t, err, ErrInvalidObjective)
}

func TestValidateRiskTolerance(t *testing.T) {
	for tol := 1; tol <= 10; tol++ {
		assert.NoError(t, ValidateRiskTolerance(tol))
	}
	assert.ErrorIs(t, ValidateRiskTolerance(0), ErrInvalidRiskTolerance)
	assert.ErrorIs(t, ValidateRiskTolerance(11), ErrInvalidRiskTolerance)
}
