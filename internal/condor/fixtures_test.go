package condor

import (
	"io"
	"log/slog"
	"time"
)

var testExpiration = time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func leg(strike, bid, ask, delta float64) OptionLeg {
	return OptionLeg{
		Strike:            strike,
		Bid:               bid,
		Ask:               ask,
		Delta:             delta,
		Gamma:             0.01,
		Theta:             -0.01,
		Vega:              0.1,
		Volume:            100,
		OpenInterest:      500,
		ImpliedVolatility: 0.2,
	}
}

// spxSlice mirrors a 5300 spot chain with strikes 5100-5500 step 50
func spxSlice(dte int) ExpirationSlice {
	strikes := []float64{5100, 5150, 5200, 5250, 5300, 5350, 5400, 5450, 5500}
	callBid := []float64{208, 163, 124, 90, 60, 36, 20, 10, 5}
	callAsk := []float64{212, 167, 128, 94, 64, 40, 24, 14, 7}
	callDelta := []float64{0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1}
	volumes := []int64{500, 450, 400, 350, 300, 250, 200, 150, 100}
	ivs := []float64{0.14, 0.15, 0.16, 0.17, 0.18, 0.19, 0.20, 0.21, 0.22}

	var s ExpirationSlice
	s.Expiration = testExpiration.AddDate(0, 0, dte-7)
	s.DTE = dte
	n := len(strikes)
	for i, k := range strikes {
		call := leg(k, callBid[i], callAsk[i], callDelta[i])
		call.Volume = volumes[i]
		call.ImpliedVolatility = ivs[i]
		s.Calls = append(s.Calls, call)

		j := n - 1 - i
		put := leg(k, callBid[j], callAsk[j], -callDelta[j])
		put.Volume = volumes[j]
		put.ImpliedVolatility = ivs[j]
		s.Puts = append(s.Puts, put)
	}
	return s
}

func spxChain(dtes ...int) *Chain {
	c := &Chain{Symbol: "$SPX", Spot: 5300}
	for _, d := range dtes {
		c.Expirations = append(c.Expirations, spxSlice(d))
	}
	return c
}

// neutralSlice has three short strikes per side inside the window around a
// 5% move on a 100 spot, and exactly one short pairing (95.2 / 105.2) whose
// summed delta is within 0.01.
func neutralSlice() ExpirationSlice {
	return ExpirationSlice{
		Expiration: testExpiration,
		DTE:        7,
		Puts: []OptionLeg{
			leg(90, 0.1, 0.2, -0.05),
			leg(94.8, 1.0, 1.1, -0.20),
			leg(95, 1.1, 1.2, -0.25),
			leg(95.2, 1.2, 1.3, -0.30),
		},
		Calls: []OptionLeg{
			leg(104.8, 1.2, 1.3, 0.42),
			leg(105, 1.1, 1.2, 0.36),
			leg(105.2, 1.0, 1.1, 0.305),
			leg(110, 0.1, 0.2, 0.05),
		},
	}
}

func testParams() SearchParameters {
	p := DefaultSearchParameters()
	p.MaxDTE = 60
	p.NumResults = 0
	return p
}
