package optimization

import (
	"sort"

	"github.com/aristath/sentinel-analytics/pkg/formulas"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	cent    = decimal.New(1, -2)
)

// Normalize scales raw weights to percentages rounded half-up to 2 dp that
// sum to exactly 100.00. Negative raw weights are floored at 0. When nothing
// positive remains the result is equal weight.
func Normalize(raw []float64) []float64 {
	n := len(raw)
	if n == 0 {
		return []float64{}
	}

	values := make([]decimal.Decimal, n)
	total := decimal.Zero
	for i, w := range raw {
		if w > 0 && formulas.IsFinite(w) {
			values[i] = decimal.NewFromFloat(w)
		}
		total = total.Add(values[i])
	}
	if !total.IsPositive() {
		for i := range values {
			values[i] = decimal.NewFromInt(1)
		}
		total = decimal.NewFromInt(int64(n))
	}

	exact := make([]decimal.Decimal, n)
	rounded := make([]decimal.Decimal, n)
	sum := decimal.Zero
	for i, v := range values {
		exact[i] = v.Mul(hundred).DivRound(total, 12)
		rounded[i] = exact[i].Round(2)
		sum = sum.Add(rounded[i])
	}

	apportion(exact, rounded, hundred.Sub(sum))

	out := make([]float64, n)
	for i, r := range rounded {
		out[i] = r.InexactFloat64()
	}
	return out
}

// apportion spreads residual cents across the entries whose rounding moved
// them furthest from their exact value. Ties go to the earlier entry.
func apportion(exact, rounded []decimal.Decimal, residual decimal.Decimal) {
	if residual.IsZero() {
		return
	}

	order := make([]int, len(exact))
	for i := range order {
		order[i] = i
	}

	step := cent
	if residual.IsNegative() {
		step = cent.Neg()
		// Remove cents from the entries rounded up the most, never below zero.
		sort.SliceStable(order, func(a, b int) bool {
			da := rounded[order[a]].Sub(exact[order[a]])
			db := rounded[order[b]].Sub(exact[order[b]])
			return da.GreaterThan(db)
		})
	} else {
		sort.SliceStable(order, func(a, b int) bool {
			da := exact[order[a]].Sub(rounded[order[a]])
			db := exact[order[b]].Sub(rounded[order[b]])
			return da.GreaterThan(db)
		})
	}

	for k := 0; !residual.IsZero() && k < 2*len(order); k++ {
		i := order[k%len(order)]
		next := rounded[i].Add(step)
		if next.IsNegative() {
			continue
		}
		rounded[i] = next
		residual = residual.Sub(step)
	}
}
