package condor

import (
	"math"

	"github.com/montanaflynn/stats"
)

// Probability model constants
const (
	TradingDaysPerYear = 252.0

	// MinVolatility and MaxVolatility bound a normalized implied volatility
	MinVolatility = 0.10
	MaxVolatility = 0.50
	// PercentVolatilityCutoff marks a volatility reported in percent
	PercentVolatilityCutoff = 10.0

	// MinProbability and MaxProbability bound the final estimate
	MinProbability = 0.05
	MaxProbability = 0.95

	// UnreliableCap caps short-dated or high-volatility estimates
	UnreliableCap        = 0.85
	UnreliableMaxDTE     = 2
	UnreliableVolatility = 0.4

	// blendLow and blendHigh bound the standardized distances where the
	// heuristic estimate is blended in
	blendLow  = 0.1
	blendHigh = 2.0

	// coarse estimates for strikes that do not straddle spot
	coarseFarPct      = 3.0
	coarseFarProb     = 0.7
	coarseNearProb    = 0.4
	defaultVolatility = 0.2
)

// NormalizeVolatility converts a reported implied volatility to a clamped
// decimal. Values above 10 are treated as percentages.
func NormalizeVolatility(iv float64) float64 {
	if math.IsNaN(iv) || iv <= 0 {
		iv = defaultVolatility
	}
	if iv > PercentVolatilityCutoff {
		iv /= 100
	}
	return clamp(iv, MinVolatility, MaxVolatility)
}

// AverageVolatility normalizes each leg's volatility and returns the mean
func AverageVolatility(legs ...OptionLeg) float64 {
	if len(legs) == 0 {
		return defaultVolatility
	}
	vols := make(stats.Float64Data, 0, len(legs))
	for _, leg := range legs {
		vols = append(vols, NormalizeVolatility(leg.ImpliedVolatility))
	}
	mean, err := vols.Mean()
	if err != nil {
		return defaultVolatility
	}
	return mean
}

// StdDevMove returns the one-sigma price move over dte trading days
func StdDevMove(spot, vol float64, dte int) float64 {
	days := float64(dte)
	if days < 1 {
		days = 1
	}
	return spot * (vol / math.Sqrt(TradingDaysPerYear)) * math.Sqrt(days)
}

// ProbabilityOfProfit estimates the probability that the underlying settles
// between the two short strikes at expiration. vol must already be
// normalized. The result is always within [MinProbability, MaxProbability].
func ProbabilityOfProfit(spot, shortPut, shortCall float64, dte int, vol float64) float64 {
	if shortPut >= spot || shortCall <= spot {
		return coarseProbability(spot, shortPut, shortCall)
	}

	sd := StdDevMove(spot, vol, dte)
	if sd <= 0 || math.IsNaN(sd) {
		return coarseProbability(spot, shortPut, shortCall)
	}

	putStdevs := (spot - shortPut) / sd
	callStdevs := (shortCall - spot) / sd
	prob := stats.NormCdf(putStdevs, 0, 1) * stats.NormCdf(callStdevs, 0, 1)

	if dte <= UnreliableMaxDTE || vol > UnreliableVolatility {
		prob = math.Min(prob, UnreliableCap)
	}

	if inBlendRange(putStdevs) && inBlendRange(callStdevs) {
		heuristic := 0.5 + math.Min(putStdevs, callStdevs)/8
		prob = (prob + heuristic) / 2
	}

	return clamp(prob, MinProbability, MaxProbability)
}

// BreakEvenProbability returns the probability at which expected profit is
// zero for the given credit and max loss
func BreakEvenProbability(netCredit, maxLoss float64) float64 {
	gain := netCredit * ContractMultiplier
	if gain+maxLoss == 0 {
		return 0
	}
	return maxLoss / (gain + maxLoss)
}

// ExpectedProfit returns the probability-weighted profit of one contract
func ExpectedProfit(netCredit, maxLoss, prob float64) float64 {
	return netCredit*ContractMultiplier*prob - maxLoss*(1-prob)
}

func coarseProbability(spot, shortPut, shortCall float64) float64 {
	if DistancePct(shortPut, spot) > coarseFarPct && DistancePct(shortCall, spot) > coarseFarPct {
		return coarseFarProb
	}
	return coarseNearProb
}

func inBlendRange(stdevs float64) bool {
	return stdevs > blendLow && stdevs < blendHigh
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
