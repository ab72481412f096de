package condor

import (
	"math"
)

// Strategy score weights. Closeness to the requested band carries four
// times the weight of the probability term.
const (
	ProbabilityWeight = 5.0
	DistanceWeight    = 4 * ProbabilityWeight
	CreditWeight      = 10.0

	// outsideWindowSlope is the per-point penalty beyond the tolerance window
	outsideWindowSlope = 2.0
)

// LegDistanceScore scores how closely a short leg's distance from spot
// matches the target distance. It is 1 at an exact match, falls linearly
// inside the tolerance window and twice as fast outside it, floored at 0.
func LegDistanceScore(actualPct, targetPct float64) float64 {
	diff := math.Abs(actualPct - targetPct)
	if diff <= DistanceTolerancePct {
		return 1 - diff
	}
	edge := 1 - DistanceTolerancePct
	return math.Max(0, edge-outsideWindowSlope*(diff-DistanceTolerancePct))
}

// DistanceScore averages the two short legs' distance scores
func DistanceScore(putDistancePct, callDistancePct, targetPct float64) float64 {
	return (LegDistanceScore(putDistancePct, targetPct) + LegDistanceScore(callDistancePct, targetPct)) / 2
}

// StrategyScore is the composite desirability used by the score ranking
func StrategyScore(c Candidate, targetPct float64) float64 {
	score := DistanceScore(c.PutDistancePct, c.CallDistancePct, targetPct)*DistanceWeight +
		c.ProbabilityOfProfit*ProbabilityWeight

	if c.MaxLoss > 0 {
		score += (c.NetCredit / (c.MaxLoss / ContractMultiplier)) * CreditWeight
	}
	return score
}
