package condor

import (
	"fmt"
	"math"
	"strings"
)

// closeToTargetPct is how near a short leg must be to the target distance
// to be marked on target
const closeToTargetPct = 0.3

// Format renders a candidate as a human-readable block. index is zero-based.
func (c Candidate) Format(index int, targetPct float64) string {
	var b strings.Builder

	fmt.Fprintf(&b, "#%d - Expiration: %s (DTE: %d)", index+1, c.ExpirationLabel(), c.DTE)
	if c.BestAvailable {
		b.WriteString(" [best available]")
	}
	b.WriteByte('\n')

	fmt.Fprintf(&b, "Structure: %s / [%s] / [%s] / %s\n",
		formatStrike(c.LongPutStrike), formatStrike(c.ShortPutStrike),
		formatStrike(c.ShortCallStrike), formatStrike(c.LongCallStrike))

	fmt.Fprintf(&b, "Target: %.1f%% range | Actual: Short Put %s %.2f%% below, Short Call %s %.2f%% above\n",
		targetPct,
		targetMark(c.PutDistancePct, targetPct), c.PutDistancePct,
		targetMark(c.CallDistancePct, targetPct), c.CallDistancePct)

	maxProfit := c.NetCredit * ContractMultiplier
	collateral := math.Max(c.PutWidth, c.CallWidth)*ContractMultiplier - maxProfit
	fmt.Fprintf(&b, "Net Credit: $%.2f | Max Loss: $%.2f\n", c.NetCredit, c.MaxLoss)
	fmt.Fprintf(&b, "Max Profit: $%.2f | Collateral: $%.2f\n", maxProfit, collateral)
	fmt.Fprintf(&b, "Expected Profit: $%.2f | Prob of Profit: %s %.1f%%\n",
		c.ExpectedProfit, probabilityMark(c.ProbabilityOfProfit), c.ProbabilityOfProfit*100)
	fmt.Fprintf(&b, "Greeks - Delta: %.4f | Gamma: %.4f | Theta: $%.2f | Vega: %.2f\n",
		c.PositionDelta, c.PositionGamma, c.PositionTheta, c.PositionVega)
	fmt.Fprintf(&b, "Risk/Reward: %s | Put Width: %s | Call Width: %s\n",
		FormatRatio(c.RiskReward), formatStrike(c.PutWidth), formatStrike(c.CallWidth))
	fmt.Fprintf(&b, "Implied Volatility: %.1f%% | Avg Spread: %.1f%%\n", c.ImpliedVolatility*100, c.AvgSpreadPct*100)
	fmt.Fprintf(&b, "Strategy Score: %.2f (higher is better)", c.StrategyScore)

	return b.String()
}

// FormatRatio renders a ratio, spelling out infinity
func FormatRatio(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", v)
}

func formatStrike(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func targetMark(actual, target float64) string {
	if math.Abs(actual-target) < closeToTargetPct {
		return "✓"
	}
	return "~"
}

func probabilityMark(p float64) string {
	switch {
	case p >= 0.6:
		return "✓"
	case p >= 0.4:
		return "~"
	default:
		return "✗"
	}
}
