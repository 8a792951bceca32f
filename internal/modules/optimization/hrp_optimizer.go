package optimization

import (
	"context"
	"fmt"
	"math"

	"github.com/aristath/sentinel-analytics/pkg/formulas"
)

// Linkage selects how cluster distances are measured.
type Linkage string

const (
	LinkageSingle   Linkage = "single"
	LinkageComplete Linkage = "complete"
	LinkageAverage  Linkage = "average"
)

// HRPOptimizer performs Hierarchical Risk Parity allocation. Objective and
// risk tolerance do not affect its output.
type HRPOptimizer struct {
	Linkage Linkage
}

// NewHRPOptimizer creates a new HRP optimizer using single linkage.
func NewHRPOptimizer() *HRPOptimizer {
	return &HRPOptimizer{Linkage: LinkageSingle}
}

type clusterNode struct {
	left    *clusterNode
	right   *clusterNode
	leaves  []int
	minLeaf int
}

// Solve implements Solver:
// 1) correlation from covariance
// 2) distance d_ij = sqrt(2 * (1 - ρ_ij))
// 3) agglomerative clustering with deterministic tie-break
// 4) quasi-diagonal leaf order from the dendrogram
// 5) recursive bisection, cluster variance via inverse-variance weights
func (hrp *HRPOptimizer) Solve(ctx context.Context, p Problem) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrSolverTimeout
	}

	n := len(p.Positions)
	if n == 0 {
		return []float64{}, nil
	}
	if err := validateCovariance(p.Covariance, n); err != nil {
		return nil, err
	}
	if p.maxWeight()*float64(n) < 100-1e-9 {
		return nil, fmt.Errorf("%w: max weight %.2f%% across %d positions can't reach 100%%", ErrNoFeasibleAllocation, p.maxWeight(), n)
	}
	if n == 1 {
		return []float64{100}, nil
	}

	corr, err := formulas.CorrelationMatrixFromCovariance(p.Covariance)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCovariance, err)
	}
	dist := formulas.CorrelationToDistance(corr)

	linkage := hrp.Linkage
	if linkage == "" {
		linkage = LinkageSingle
	}

	order := quasiDiagonalOrder(buildDendrogram(dist, linkage))
	if len(order) != n {
		return nil, fmt.Errorf("invalid HRP order length %d", len(order))
	}

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1.0
	}
	recursiveBisection(weights, p.Covariance, order)

	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 || !formulas.IsFinite(sum) {
		return nil, fmt.Errorf("%w: invalid HRP weight sum %v", ErrNoFeasibleAllocation, sum)
	}

	upper := p.maxWeight() / 100
	for i := range weights {
		weights[i] /= sum
	}
	weights = projectToSimplex(weights, upper)
	for i := range weights {
		weights[i] *= 100
	}
	return Normalize(weights), nil
}

func buildDendrogram(dist [][]float64, linkage Linkage) *clusterNode {
	n := len(dist)
	clusters := make([]*clusterNode, 0, n)
	for i := 0; i < n; i++ {
		clusters = append(clusters, &clusterNode{leaves: []int{i}, minLeaf: i})
	}

	for len(clusters) > 1 {
		bestI, bestJ := 0, 1
		bestD := clusterDistance(dist, clusters[0], clusters[1], linkage)

		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				d := clusterDistance(dist, clusters[i], clusters[j], linkage)
				if d < bestD || (d == bestD && pairLess(clusters[i], clusters[j], clusters[bestI], clusters[bestJ])) {
					bestD, bestI, bestJ = d, i, j
				}
			}
		}

		left, right := clusters[bestI], clusters[bestJ]
		if right.minLeaf < left.minLeaf {
			left, right = right, left
		}

		leaves := make([]int, 0, len(left.leaves)+len(right.leaves))
		leaves = append(leaves, left.leaves...)
		leaves = append(leaves, right.leaves...)
		merged := &clusterNode{left: left, right: right, leaves: leaves, minLeaf: left.minLeaf}

		next := make([]*clusterNode, 0, len(clusters)-1)
		for k, c := range clusters {
			if k != bestI && k != bestJ {
				next = append(next, c)
			}
		}
		clusters = append(next, merged)
	}

	return clusters[0]
}

// pairLess breaks distance ties by the pair's smaller then larger minLeaf.
func pairLess(a1, b1, a2, b2 *clusterNode) bool {
	x1, y1 := a1.minLeaf, b1.minLeaf
	if y1 < x1 {
		x1, y1 = y1, x1
	}
	x2, y2 := a2.minLeaf, b2.minLeaf
	if y2 < x2 {
		x2, y2 = y2, x2
	}
	if x1 != x2 {
		return x1 < x2
	}
	return y1 < y2
}

func clusterDistance(dist [][]float64, a, b *clusterNode, linkage Linkage) float64 {
	switch linkage {
	case LinkageComplete:
		best := math.Inf(-1)
		for _, i := range a.leaves {
			for _, j := range b.leaves {
				best = math.Max(best, dist[i][j])
			}
		}
		return best
	case LinkageAverage:
		sum := 0.0
		for _, i := range a.leaves {
			for _, j := range b.leaves {
				sum += dist[i][j]
			}
		}
		return sum / float64(len(a.leaves)*len(b.leaves))
	default:
		best := math.Inf(1)
		for _, i := range a.leaves {
			for _, j := range b.leaves {
				best = math.Min(best, dist[i][j])
			}
		}
		return best
	}
}

func quasiDiagonalOrder(node *clusterNode) []int {
	if node == nil {
		return nil
	}
	if node.left == nil && node.right == nil {
		return []int{node.leaves[0]}
	}
	return append(quasiDiagonalOrder(node.left), quasiDiagonalOrder(node.right)...)
}

func recursiveBisection(weights []float64, cov [][]float64, order []int) {
	if len(order) <= 1 {
		return
	}
	split := len(order) / 2
	left, right := order[:split], order[split:]

	vLeft := clusterVariance(cov, left)
	vRight := clusterVariance(cov, right)

	alpha := 0.5
	if vLeft+vRight > 0 {
		alpha = 1.0 - vLeft/(vLeft+vRight)
	}
	alpha = formulas.Clamp(alpha, 0, 1)

	for _, idx := range left {
		weights[idx] *= alpha
	}
	for _, idx := range right {
		weights[idx] *= 1.0 - alpha
	}

	recursiveBisection(weights, cov, left)
	recursiveBisection(weights, cov, right)
}

// clusterVariance is w'Σw for the inverse-variance portfolio of idxs.
func clusterVariance(cov [][]float64, idxs []int) float64 {
	if len(idxs) == 1 {
		return math.Max(cov[idxs[0]][idxs[0]], 0)
	}

	const eps = 1e-12
	inv := make([]float64, len(idxs))
	sumInv := 0.0
	for k, i := range idxs {
		inv[k] = 1.0 / math.Max(cov[i][i], eps)
		sumInv += inv[k]
	}
	for k := range inv {
		inv[k] /= sumInv
	}

	variance := 0.0
	for a, i := range idxs {
		for b, j := range idxs {
			variance += inv[a] * cov[i][j] * inv[b]
		}
	}
	return math.Max(variance, 0)
}
