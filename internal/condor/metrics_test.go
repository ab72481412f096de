package condor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spxStructure() Structure {
	return Structure{
		LongPut:   leg(5150, 10, 14, -0.2),
		ShortPut:  leg(5200, 20, 24, -0.3),
		ShortCall: leg(5400, 20, 24, 0.3),
		LongCall:  leg(5450, 10, 14, 0.2),
	}
}

func TestMetricsCalculator_Calculate(t *testing.T) {
	calc := NewMetricsCalculator("$SPX")

	c, err := calc.Calculate(spxStructure(), 5300, testExpiration, 7, 2.0)
	require.NoError(t, err)

	assert.Equal(t, "$SPX", c.Symbol)
	assert.Equal(t, 7, c.DTE)
	assert.InDelta(t, 12.0, c.NetCredit, 1e-9)
	assert.InDelta(t, 50.0, c.PutWidth, 1e-9)
	assert.InDelta(t, 50.0, c.CallWidth, 1e-9)
	assert.InDelta(t, 3800.0, c.MaxLoss, 1e-9)
	assert.InDelta(t, 3800.0/1200.0, c.RiskReward, 1e-9)
	assert.InDelta(t, 0.0, c.PositionDelta, 1e-9)
	assert.InDelta(t, 0.04, c.PositionGamma, 1e-9)
	assert.InDelta(t, -0.04, c.PositionTheta, 1e-9)
	assert.InDelta(t, 0.4, c.PositionVega, 1e-9)
	assert.InDelta(t, 0.2, c.ImpliedVolatility, 1e-12)

	wantProb := ProbabilityOfProfit(5300, 5200, 5400, 7, 0.2)
	assert.InDelta(t, wantProb, c.ProbabilityOfProfit, 1e-12)
	assert.InDelta(t, 1200*wantProb-3800*(1-wantProb), c.ExpectedProfit, 1e-9)

	// (4/12 + 4/22 + 4/22 + 4/12) / 4
	assert.InDelta(t, (4.0/12+4.0/22+4.0/22+4.0/12)/4, c.AvgSpreadPct, 1e-12)
	assert.InDelta(t, DistancePct(5200, 5300), c.PutDistancePct, 1e-12)
	assert.InDelta(t, DistancePct(5400, 5300), c.CallDistancePct, 1e-12)
	assert.Positive(t, c.StrategyScore)
	assert.True(t, c.IsValid(5300))
}

func TestStructure_LegsAndDelta(t *testing.T) {
	s := spxStructure()
	s.ShortPut.ImpliedVolatility = 30
	s.LongCall.Delta = 0.25

	legs := s.Legs()
	require.Len(t, legs, 4)
	assert.Equal(t, []float64{5150, 5200, 5400, 5450},
		[]float64{legs[0].Strike, legs[1].Strike, legs[2].Strike, legs[3].Strike})
	assert.InDelta(t, 0.05, s.Delta(), 1e-9)

	c, err := NewMetricsCalculator("$SPX").Calculate(s, 5300, testExpiration, 7, 2.0)
	require.NoError(t, err)
	assert.InDelta(t, s.Delta(), c.PositionDelta, 1e-12)
	// 30 reads as 30% and averages with three 20% legs
	assert.InDelta(t, 0.225, c.ImpliedVolatility, 1e-12)
}

func TestMetricsCalculator_UnevenWidths(t *testing.T) {
	s := spxStructure()
	s.LongCall = leg(5500, 5, 7, 0.1)

	c, err := NewMetricsCalculator("$SPX").Calculate(s, 5300, testExpiration, 7, 2.0)
	require.NoError(t, err)

	// the wider call wing governs both tails
	credit := (20.0 - 14.0) + (20.0 - 7.0)
	assert.InDelta(t, 100*100-credit*100, c.MaxLoss, 1e-9)
}

func TestMetricsCalculator_Rejections(t *testing.T) {
	calc := NewMetricsCalculator("$SPX")

	t.Run("zero midpoint", func(t *testing.T) {
		s := spxStructure()
		s.LongPut.Bid, s.LongPut.Ask = 0, 0
		_, err := calc.Calculate(s, 5300, testExpiration, 7, 2.0)
		assert.ErrorIs(t, err, ErrZeroMidpoint)
	})

	t.Run("unordered strikes", func(t *testing.T) {
		s := spxStructure()
		s.LongPut, s.ShortPut = s.ShortPut, s.LongPut
		_, err := calc.Calculate(s, 5300, testExpiration, 7, 2.0)
		assert.ErrorIs(t, err, ErrUnordered)
	})
}

func TestRiskReward(t *testing.T) {
	assert.InDelta(t, 2.0, RiskReward(200, 1), 1e-12)
	assert.True(t, math.IsInf(RiskReward(200, 0), 1))
	assert.True(t, math.IsInf(RiskReward(200, -0.5), 1))
}

func TestAvgSpreadPct(t *testing.T) {
	got, err := AvgSpreadPct(leg(1, 1, 1, 0), leg(1, 0.9, 1.1, 0))
	require.NoError(t, err)
	assert.InDelta(t, 0.1, got, 1e-12)

	got, err = AvgSpreadPct(leg(1, 1, 1, 0), OptionLeg{})
	assert.ErrorIs(t, err, ErrZeroMidpoint)
	assert.True(t, math.IsInf(got, 1))
}

func TestStrategyScore(t *testing.T) {
	tests := []struct {
		name      string
		actual    float64
		target    float64
		wantScore float64
	}{
		{name: "exact", actual: 2.0, target: 2.0, wantScore: 1.0},
		{name: "inside window", actual: 2.3, target: 2.0, wantScore: 0.7},
		{name: "window edge", actual: 2.5, target: 2.0, wantScore: 0.5},
		{name: "outside window", actual: 2.75, target: 2.0, wantScore: 0.0},
		{name: "just outside window", actual: 1.4, target: 2.0, wantScore: 0.3},
		{name: "far outside", actual: 5, target: 2.0, wantScore: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.wantScore, LegDistanceScore(tt.actual, tt.target), 1e-9)
		})
	}

	t.Run("closer band scores higher", func(t *testing.T) {
		near := Candidate{PutDistancePct: 2, CallDistancePct: 2, ProbabilityOfProfit: 0.6, NetCredit: 1, MaxLoss: 400}
		far := near
		far.PutDistancePct, far.CallDistancePct = 3, 3
		assert.Greater(t, StrategyScore(near, 2), StrategyScore(far, 2))
	})

	t.Run("components", func(t *testing.T) {
		c := Candidate{PutDistancePct: 2, CallDistancePct: 2, ProbabilityOfProfit: 0.6, NetCredit: 1, MaxLoss: 400}
		// 1*20 + 0.6*5 + (1/4)*10
		assert.InDelta(t, 25.5, StrategyScore(c, 2), 1e-9)

		c.MaxLoss = 0
		assert.InDelta(t, 23.0, StrategyScore(c, 2), 1e-9)
	})
}
