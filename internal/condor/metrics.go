package condor

import (
	"errors"
	"math"
	"time"

	"github.com/montanaflynn/stats"
)

// ErrZeroMidpoint is returned when a leg's midpoint is zero and the spread
// percentage is undefined
var ErrZeroMidpoint = errors.New("leg midpoint is zero")

// ErrUnordered is returned when the four strikes are not strictly ascending
var ErrUnordered = errors.New("strikes are not in long put < short put < short call < long call order")

// MetricsCalculator turns a 4-leg structure into a scored Candidate
type MetricsCalculator struct {
	symbol string
}

// NewMetricsCalculator creates a calculator for candidates of symbol
func NewMetricsCalculator(symbol string) *MetricsCalculator {
	return &MetricsCalculator{symbol: symbol}
}

// Calculate computes every candidate metric. It fails with ErrZeroMidpoint
// when the spread percentage is undefined and with ErrUnordered on
// malformed strike order; callers treat both as a rejection.
func (m *MetricsCalculator) Calculate(s Structure, spot float64, expiration time.Time, dte int, targetPct float64) (Candidate, error) {
	if !s.IsOrdered() {
		return Candidate{}, ErrUnordered
	}

	spreadPct, err := AvgSpreadPct(s.Legs()...)
	if err != nil {
		return Candidate{}, err
	}

	credit := s.NetCredit()
	putWidth := s.ShortPut.Strike - s.LongPut.Strike
	callWidth := s.LongCall.Strike - s.ShortCall.Strike
	maxLoss := MaxLoss(putWidth, callWidth, credit)

	vol := AverageVolatility(s.Legs()...)
	prob := ProbabilityOfProfit(spot, s.ShortPut.Strike, s.ShortCall.Strike, dte, vol)

	c := Candidate{
		Symbol:              m.symbol,
		Expiration:          expiration,
		DTE:                 dte,
		LongPutStrike:       s.LongPut.Strike,
		ShortPutStrike:      s.ShortPut.Strike,
		ShortCallStrike:     s.ShortCall.Strike,
		LongCallStrike:      s.LongCall.Strike,
		NetCredit:           credit,
		MaxLoss:             maxLoss,
		PositionDelta:       s.Delta(),
		PositionGamma:       s.LongPut.Gamma + s.ShortPut.Gamma + s.ShortCall.Gamma + s.LongCall.Gamma,
		PositionTheta:       s.LongPut.Theta + s.ShortPut.Theta + s.ShortCall.Theta + s.LongCall.Theta,
		PositionVega:        s.LongPut.Vega + s.ShortPut.Vega + s.ShortCall.Vega + s.LongCall.Vega,
		ProbabilityOfProfit: prob,
		ExpectedProfit:      ExpectedProfit(credit, maxLoss, prob),
		RiskReward:          RiskReward(maxLoss, credit),
		AvgSpreadPct:        spreadPct,
		PutWidth:            putWidth,
		CallWidth:           callWidth,
		ImpliedVolatility:   vol,
		PutDistancePct:      DistancePct(s.ShortPut.Strike, spot),
		CallDistancePct:     DistancePct(s.ShortCall.Strike, spot),
		BestAvailable:       s.BestAvailable,
	}
	c.StrategyScore = StrategyScore(c, targetPct)
	return c, nil
}

// MaxLoss returns the worst-case loss of one contract. The wider of the two
// spread widths is assumed to govern both tails, which understates the loss
// on the narrower side when widths differ.
func MaxLoss(putWidth, callWidth, netCredit float64) float64 {
	return math.Max(putWidth, callWidth)*ContractMultiplier - netCredit*ContractMultiplier
}

// RiskReward returns max loss per dollar of credit, or +Inf without credit
func RiskReward(maxLoss, netCredit float64) float64 {
	if netCredit <= 0 {
		return math.Inf(1)
	}
	return maxLoss / (netCredit * ContractMultiplier)
}

// AvgSpreadPct returns the mean (ask-bid)/mid across legs
func AvgSpreadPct(legs ...OptionLeg) (float64, error) {
	pcts := make(stats.Float64Data, 0, len(legs))
	for _, leg := range legs {
		mid := leg.Mid()
		if mid == 0 {
			return math.Inf(1), ErrZeroMidpoint
		}
		pcts = append(pcts, leg.Spread()/mid)
	}
	mean, err := pcts.Mean()
	if err != nil {
		return math.Inf(1), ErrZeroMidpoint
	}
	return mean, nil
}
