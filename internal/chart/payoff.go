package chart

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
)

// DefaultPoints is the curve resolution used when none is configured
const DefaultPoints = 200

// Curve is the expiration P/L of one condor sampled across a price range
type Curve struct {
	Prices        []float64
	PnL           []float64
	BreakEvenLow  float64
	BreakEvenHigh float64
	MaxProfit     float64
	MaxLoss       float64
}

// Payoff returns the P/L in dollars of one contract held to expiration
// with the underlying settling at price.
func Payoff(c condor.Candidate, price float64) float64 {
	perShare := c.NetCredit +
		math.Max(0, c.LongPutStrike-price) -
		math.Max(0, c.ShortPutStrike-price) -
		math.Max(0, price-c.ShortCallStrike) +
		math.Max(0, price-c.LongCallStrike)
	return perShare * condor.ContractMultiplier
}

// PriceRange spans two spread widths beyond each long strike
func PriceRange(c condor.Candidate) (lo, hi float64) {
	width := math.Max(c.ShortPutStrike-c.LongPutStrike, c.LongCallStrike-c.ShortCallStrike)
	lo = math.Max(0, c.LongPutStrike-2*width)
	hi = c.LongCallStrike + 2*width
	return lo, hi
}

// BreakEvens returns the settlement prices where the position neither
// gains nor loses.
func BreakEvens(c condor.Candidate) (low, high float64) {
	return c.ShortPutStrike - c.NetCredit, c.ShortCallStrike + c.NetCredit
}

// PayoffCurve samples Payoff at points evenly spaced prices across
// PriceRange. Fewer than two points fall back to DefaultPoints.
func PayoffCurve(c condor.Candidate, points int) Curve {
	if points < 2 {
		points = DefaultPoints
	}
	lo, hi := PriceRange(c)
	step := (hi - lo) / float64(points-1)

	curve := Curve{
		Prices:    make([]float64, points),
		PnL:       make([]float64, points),
		MaxProfit: math.Inf(-1),
		MaxLoss:   math.Inf(1),
	}
	curve.BreakEvenLow, curve.BreakEvenHigh = BreakEvens(c)

	for i := 0; i < points; i++ {
		price := lo + float64(i)*step
		pnl := Payoff(c, price)
		curve.Prices[i] = price
		curve.PnL[i] = pnl
		curve.MaxProfit = math.Max(curve.MaxProfit, pnl)
		curve.MaxLoss = math.Min(curve.MaxLoss, pnl)
	}
	return curve
}

// FileName is the chart file name for a candidate:
// ic_{symbol}_{expiration}_{short put}_{short call}.png
func FileName(symbol string, c condor.Candidate) string {
	return fmt.Sprintf("ic_%s_%s_%s_%s.png",
		sanitizeSymbol(symbol),
		c.ExpirationLabel(),
		strconv.FormatFloat(c.ShortPutStrike, 'f', -1, 64),
		strconv.FormatFloat(c.ShortCallStrike, 'f', -1, 64),
	)
}

func sanitizeSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.TrimPrefix(symbol, "$"))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, symbol)
}
