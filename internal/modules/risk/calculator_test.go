package risk

import (
	"math"
	"testing"

	"github.com/aristath/sentinel-analytics/internal/modules/holdings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_DemoPortfolio(t *testing.T) {
	m := Compute(holdings.DemoPositions())

	// 0.25·12.5 + 0.20·11.8 + 0.15·13.2 + 0.20·8.5 + 0.20·10.2 = 11.205
	assert.InDelta(t, 11.205, m.ExpectedReturn, 1e-9)
	// (0.25·22.1)² + (0.20·19.5)² + (0.15·24.3)² + (0.20·15.2)² + (0.20·28.7)² = 101.21085
	assert.InDelta(t, math.Sqrt(101.21085), m.ExpectedRisk, 1e-9)
	assert.InDelta(t, 10.06036, m.ExpectedRisk, 1e-5)
	assert.InDelta(t, 1.11378, m.SharpeRatio, 1e-5)
	assert.InDelta(t, 16.5493, m.VaR95, 1e-4)
	assert.InDelta(t, m.ExpectedReturn/m.ExpectedRisk, m.SharpeRatio, 1e-12)
	assert.InDelta(t, m.ExpectedRisk*1.645, m.VaR95, 1e-12)
}

func TestCompute_UncorrelatedRisk(t *testing.T) {
	positions := []holdings.Position{
		{Symbol: "A", Weight: 60, ExpectedReturn: 10, Risk: 20},
		{Symbol: "B", Weight: 40, ExpectedReturn: 5, Risk: 10},
	}

	m := Compute(positions)

	// sqrt((0.6·20)² + (0.4·10)²) = sqrt(144 + 16)
	assert.InDelta(t, 12.649110640673518, m.ExpectedRisk, 1e-9)
	assert.InDelta(t, 8.0, m.ExpectedReturn, 1e-9)
}

func TestCompute_ZeroRisk(t *testing.T) {
	positions := []holdings.Position{
		{Symbol: "CASH", Weight: 100, ExpectedReturn: 3, Risk: 0},
	}

	m := Compute(positions)

	assert.Equal(t, 0.0, m.ExpectedRisk)
	assert.Equal(t, 0.0, m.SharpeRatio)
	assert.Equal(t, 0.0, m.VaR95)
	assert.InDelta(t, 3.0, m.ExpectedReturn, 1e-12)
}

func TestCompute_Empty(t *testing.T) {
	assert.Equal(t, Metrics{}, Compute(nil))
}

func TestCompute_VaRMonotonicInRisk(t *testing.T) {
	low := Compute([]holdings.Position{{Symbol: "A", Weight: 100, ExpectedReturn: 5, Risk: 10}})
	high := Compute([]holdings.Position{{Symbol: "A", Weight: 100, ExpectedReturn: 5, Risk: 30}})

	assert.Greater(t, high.ExpectedRisk, low.ExpectedRisk)
	assert.Greater(t, high.VaR95, low.VaR95)
}

func TestComputeWeights_OverridesStoredWeights(t *testing.T) {
	positions := holdings.DemoPositions()
	weights := []float64{20, 20, 20, 20, 20}

	m := ComputeWeights(positions, weights)

	expected := 0.2 * (12.5 + 11.8 + 13.2 + 8.5 + 10.2)
	assert.InDelta(t, expected, m.ExpectedReturn, 1e-9)
}

func TestComputeWeights_ShortVector(t *testing.T) {
	positions := []holdings.Position{
		{Symbol: "A", Weight: 50, ExpectedReturn: 10, Risk: 10},
		{Symbol: "B", Weight: 50, ExpectedReturn: 20, Risk: 10},
	}

	m := ComputeWeights(positions, []float64{100})

	assert.InDelta(t, 10.0, m.ExpectedReturn, 1e-12)
	assert.InDelta(t, 10.0, m.ExpectedRisk, 1e-12)
}

func TestComputeWithCovariance_DiagonalMatchesFallback(t *testing.T) {
	positions := holdings.DemoPositions()
	weights := holdings.Weights(positions)

	withCov, err := ComputeWithCovariance(positions, weights, DiagonalCovariance(positions))
	require.NoError(t, err)
	fallback := Compute(positions)

	assert.InDelta(t, fallback.ExpectedRisk, withCov.ExpectedRisk, 1e-9)
	assert.InDelta(t, fallback.ExpectedReturn, withCov.ExpectedReturn, 1e-12)
	assert.InDelta(t, fallback.SharpeRatio, withCov.SharpeRatio, 1e-9)
}

func TestComputeWithCovariance_NilFallsBack(t *testing.T) {
	positions := holdings.DemoPositions()

	m, err := ComputeWithCovariance(positions, holdings.Weights(positions), nil)
	require.NoError(t, err)

	assert.Equal(t, Compute(positions), m)
}

func TestComputeWithCovariance_PositiveCorrelationRaisesRisk(t *testing.T) {
	positions := []holdings.Position{
		{Symbol: "A", Weight: 50, ExpectedReturn: 10, Risk: 20},
		{Symbol: "B", Weight: 50, ExpectedReturn: 10, Risk: 20},
	}
	correlated := [][]float64{
		{400, 320},
		{320, 400},
	}

	m, err := ComputeWithCovariance(positions, holdings.Weights(positions), correlated)
	require.NoError(t, err)

	assert.Greater(t, m.ExpectedRisk, Compute(positions).ExpectedRisk)
	// sqrt(0.25·400 + 0.25·400 + 2·0.25·320) = sqrt(360)
	assert.InDelta(t, 18.973665961010276, m.ExpectedRisk, 1e-9)
}

func TestComputeWithCovariance_DimensionMismatch(t *testing.T) {
	positions := holdings.DemoPositions()

	_, err := ComputeWithCovariance(positions, holdings.Weights(positions), [][]float64{{1}})
	assert.Error(t, err)

	bad := DiagonalCovariance(positions)
	bad[2] = bad[2][:3]
	_, err = ComputeWithCovariance(positions, holdings.Weights(positions), bad)
	assert.Error(t, err)
}

func TestComputeConcentration(t *testing.T) {
	c := ComputeConcentration(holdings.DemoPositions())

	assert.Equal(t, "AAPL", c.LargestPosition)
	assert.Equal(t, 25.0, c.LargestWeight)
	assert.Equal(t, "Technology", c.LargestSector)
	assert.InDelta(t, 60.0, c.SectorWeight, 1e-9)
	// 0.0625 + 0.04 + 0.0225 + 0.04 + 0.04
	assert.InDelta(t, 0.205, c.Herfindahl, 1e-12)
}

func TestComputeConcentration_TieKeepsFirst(t *testing.T) {
	c := ComputeConcentration([]holdings.Position{
		{Symbol: "A", Weight: 50, Sector: "X"},
		{Symbol: "B", Weight: 50, Sector: "Y"},
	})

	assert.Equal(t, "A", c.LargestPosition)
	assert.Equal(t, "X", c.LargestSector)
	assert.InDelta(t, 0.5, c.Herfindahl, 1e-12)
}
