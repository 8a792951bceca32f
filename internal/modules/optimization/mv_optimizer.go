package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

const penaltyWeight = 1000.0

// convergedStatuses are the terminal statuses accepted as a solution.
var convergedStatuses = map[optimize.Status]bool{
	optimize.Success:             true,
	optimize.GradientThreshold:   true,
	optimize.FunctionConvergence: true,
	optimize.MethodConverge:      true,
	optimize.StepConvergence:     true,
}

// MeanVarianceOptimizer performs mean-variance portfolio optimization over a
// covariance matrix.
type MeanVarianceOptimizer struct{}

// NewMeanVarianceOptimizer creates a new mean-variance optimizer.
func NewMeanVarianceOptimizer() *MeanVarianceOptimizer {
	return &MeanVarianceOptimizer{}
}

// Solve implements Solver.
//
// Mathematical formulation, w as fractions:
//   - min_risk:   minimize w'Σw
//   - max_return: minimize w'Σw - λ·μ'w with λ = riskTolerance/2
//   - max_sharpe: maximize μ'w / sqrt(w'Σw)
//
// Constraints:
//   - Σw = 1
//   - 0 ≤ w_i ≤ MaxWeight/100
func (mvo *MeanVarianceOptimizer) Solve(ctx context.Context, p Problem) ([]float64, error) {
	if !p.Objective.Valid() {
		return nil, ErrInvalidObjective
	}
	if err := ValidateRiskTolerance(p.RiskTolerance); err != nil {
		return nil, err
	}

	n := len(p.Positions)
	if n == 0 {
		return []float64{}, nil
	}
	if err := validateCovariance(p.Covariance, n); err != nil {
		return nil, err
	}

	upper := p.maxWeight() / 100
	if upper*float64(n) < 1-1e-9 {
		return nil, fmt.Errorf("%w: max weight %.2f%% across %d positions can't reach 100%%", ErrNoFeasibleAllocation, p.maxWeight(), n)
	}
	if n == 1 {
		return []float64{100}, nil
	}

	mu := make([]float64, n)
	for i, pos := range p.Positions {
		mu[i] = pos.ExpectedReturn
	}
	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sigma.SetSym(i, j, (p.Covariance[i][j]+p.Covariance[j][i])/2)
		}
	}

	problem := optimize.Problem{
		Func: mvo.objective(p.Objective, p.RiskTolerance, mu, sigma, upper),
	}

	settings := &optimize.Settings{}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrSolverTimeout
		}
		settings.Runtime = remaining
	}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	result, err := optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
	if ctx.Err() != nil || (result != nil && result.Status == optimize.RuntimeLimit) {
		return nil, ErrSolverTimeout
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFeasibleAllocation, err)
	}
	if !convergedStatuses[result.Status] {
		return nil, fmt.Errorf("%w: optimization did not converge: status=%v", ErrNoFeasibleAllocation, result.Status)
	}

	weights := projectToSimplex(result.X, upper)
	if weights == nil {
		return nil, fmt.Errorf("%w: solution has no positive weight", ErrNoFeasibleAllocation)
	}
	for i := range weights {
		weights[i] *= 100
	}
	return Normalize(weights), nil
}

// objective builds the penalized function minimized by Nelder-Mead. The
// candidate is projected to [0, upper], then rescaled to sum to 1 before the
// objective is evaluated; the penalties keep the raw point near the simplex
// and the rescaled point inside its bounds.
func (mvo *MeanVarianceOptimizer) objective(objective Objective, riskTolerance int, mu []float64, sigma *mat.SymDense, upper float64) func([]float64) float64 {
	n := len(mu)
	lambda := float64(riskTolerance) / 2

	return func(x []float64) float64 {
		xProj := projectToBounds(x, upper)

		sum := 0.0
		for _, v := range xProj {
			sum += v
		}
		if sum <= 0 {
			deficit := 1.0
			for _, v := range x {
				deficit += v * v
			}
			return penaltyWeight * deficit
		}

		w := mat.NewVecDense(n, nil)
		for i, v := range xProj {
			w.SetVec(i, v/sum)
		}

		variance := mat.Inner(w, sigma, w)
		ret := 0.0
		for i := 0; i < n; i++ {
			ret += mu[i] * w.AtVec(i)
		}

		var obj float64
		switch objective {
		case MinRisk:
			obj = variance
		case MaxReturn:
			obj = variance - lambda*ret
		case MaxSharpe:
			obj = -ret / math.Sqrt(math.Max(variance, 1e-10))
		}

		obj += penaltyWeight * (sum - 1.0) * (sum - 1.0)
		for i := 0; i < n; i++ {
			if over := w.AtVec(i) - upper; over > 0 {
				obj += penaltyWeight * over * over
			}
		}
		return obj
	}
}

// projectToBounds clamps every weight into [0, upper].
func projectToBounds(x []float64, upper float64) []float64 {
	proj := make([]float64, len(x))
	for i := range x {
		proj[i] = math.Max(0, math.Min(upper, x[i]))
	}
	return proj
}

// projectToSimplex clamps to bounds and rescales to sum to 1, redistributing
// any excess over upper to the entries that still have room. Returns nil when
// nothing positive remains.
func projectToSimplex(x []float64, upper float64) []float64 {
	w := projectToBounds(x, upper)

	for iter := 0; iter < len(w); iter++ {
		sum := 0.0
		for _, v := range w {
			sum += v
		}
		if sum <= 0 {
			return nil
		}
		for i := range w {
			w[i] /= sum
		}

		excess := 0.0
		room := 0.0
		for i := range w {
			if w[i] > upper {
				excess += w[i] - upper
				w[i] = upper
			} else {
				room += w[i]
			}
		}
		if excess <= 1e-12 || room <= 0 {
			break
		}
		for i := range w {
			if w[i] < upper {
				w[i] += excess * w[i] / room
			}
		}
	}
	return w
}

// IsTimeout reports whether err came from an elapsed solver deadline or a
// cancelled solve.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrSolverTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
