package rebalancing

import (
	"testing"

	"github.com/aristath/sentinel-analytics/internal/modules/holdings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func position(symbol string, weight float64) holdings.Position {
	return holdings.Position{Symbol: symbol, Weight: weight, ExpectedReturn: 10, Risk: 20}
}

func TestDiff_BelowThresholdIsSuppressed(t *testing.T) {
	actions := Diff([]holdings.Position{position("AAPL", 25)}, []float64{25.5})
	assert.Empty(t, actions)
}

func TestDiff_ExactlyThresholdIsSuppressed(t *testing.T) {
	actions := Diff([]holdings.Position{position("AAPL", 25)}, []float64{26})
	assert.Empty(t, actions)

	// 1.1 - 0.1 is slightly above 1 in float arithmetic
	actions = Diff([]holdings.Position{position("AAPL", 0.1)}, []float64{1.1})
	assert.Empty(t, actions)
}

func TestDiff_Buy(t *testing.T) {
	actions := Diff([]holdings.Position{position("AAPL", 25)}, []float64{27})

	require.Len(t, actions, 1)
	assert.Equal(t, RebalanceAction{
		Symbol:        "AAPL",
		CurrentWeight: 25,
		TargetWeight:  27,
		Change:        2,
		Action:        Buy,
	}, actions[0])
}

func TestDiff_Sell(t *testing.T) {
	actions := Diff([]holdings.Position{position("JPM", 20)}, []float64{17.55})

	require.Len(t, actions, 1)
	assert.Equal(t, Sell, actions[0].Action)
	assert.Equal(t, -2.45, actions[0].Change)
}

func TestDiff_SignConsistencyAndOrder(t *testing.T) {
	current := holdings.DemoPositions()
	target := []float64{20.13, 21.5, 18.7, 19.9, 19.77}

	actions := Diff(current, target)

	symbols := make([]string, 0, len(actions))
	for _, a := range actions {
		symbols = append(symbols, a.Symbol)
		assert.Greater(t, abs(a.Change), MaterialityThreshold)
		if a.Change > 0 {
			assert.Equal(t, Buy, a.Action)
		} else {
			assert.Equal(t, Sell, a.Action)
		}
		assert.InDelta(t, a.TargetWeight-a.CurrentWeight, a.Change, 1e-9)
	}
	assert.Equal(t, []string{"AAPL", "MSFT", "GOOGL"}, symbols)
}

func TestDiff_MissingTargetsCountAsZero(t *testing.T) {
	current := []holdings.Position{position("A", 50), position("B", 50)}

	actions := Diff(current, []float64{100})

	require.Len(t, actions, 2)
	assert.Equal(t, Buy, actions[0].Action)
	assert.Equal(t, Sell, actions[1].Action)
	assert.Equal(t, 0.0, actions[1].TargetWeight)
}

func TestDiff_ExtraTargetsIgnored(t *testing.T) {
	actions := Diff([]holdings.Position{position("A", 100)}, []float64{100, 50})
	assert.Empty(t, actions)
}

func TestDiff_EmptyInputGivesEmptySlice(t *testing.T) {
	actions := Diff(nil, nil)
	assert.NotNil(t, actions)
	assert.Empty(t, actions)
}

func TestDiffWithThreshold(t *testing.T) {
	current := []holdings.Position{position("A", 25)}

	assert.Len(t, DiffWithThreshold(current, []float64{25.5}, 0.25), 1)
	assert.Empty(t, DiffWithThreshold(current, []float64{25.5}, 0.5))
	assert.Len(t, DiffWithThreshold(current, []float64{25.01}, -3), 1)
	assert.Empty(t, DiffWithThreshold(current, []float64{25}, -3))
}

func TestDiffAllocation(t *testing.T) {
	current := []holdings.Position{position("A", 40), position("B", 60)}

	actions := DiffAllocation(current, map[string]float64{"A": 60, "B": 40, "C": 10})

	require.Len(t, actions, 2)
	assert.Equal(t, "A", actions[0].Symbol)
	assert.Equal(t, Buy, actions[0].Action)
	assert.Equal(t, "B", actions[1].Symbol)
	assert.Equal(t, Sell, actions[1].Action)
}

func TestSummary(t *testing.T) {
	actions := []RebalanceAction{
		{Symbol: "A", Change: 5, Action: Buy},
		{Symbol: "B", Change: -3, Action: Sell},
		{Symbol: "C", Change: -2, Action: Sell},
	}

	s := Summary(actions)

	assert.Equal(t, 1, s.Buys)
	assert.Equal(t, 2, s.Sells)
	assert.Equal(t, 5.0, s.Turnover)
	assert.Equal(t, ActionSummary{}, Summary(nil))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
