package testutil

import (
	"time"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/marketdata"
)

// FixtureDate is the reference "today" of the synthetic chains
var FixtureDate = time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC)

// SPXSpot is the underlying price of SPXChain
const SPXSpot = 5300.0

var (
	spxStrikes   = []float64{5100, 5150, 5200, 5250, 5300, 5350, 5400, 5450, 5500}
	spxCallBid   = []float64{208, 163, 124, 90, 60, 36, 20, 10, 5}
	spxCallAsk   = []float64{212, 167, 128, 94, 64, 40, 24, 14, 7}
	spxCallDelta = []float64{0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1}
	spxVolume    = []int64{500, 450, 400, 350, 300, 250, 200, 150, 100}
	spxIV        = []float64{0.14, 0.15, 0.16, 0.17, 0.18, 0.19, 0.20, 0.21, 0.22}
)

// SPXChain returns a 5300 spot chain with strikes 5100-5500 step 50, one
// expiration per dte. With default search parameters a 7 DTE slice yields
// exactly one condor, 5150/5200/5400/5450.
func SPXChain(dtes ...int) *condor.Chain {
	c := &condor.Chain{Symbol: "$SPX", Spot: SPXSpot, FetchedAt: FixtureDate}
	for _, dte := range dtes {
		c.Expirations = append(c.Expirations, spxSlice(dte))
	}
	return c
}

func spxSlice(dte int) condor.ExpirationSlice {
	s := condor.ExpirationSlice{Expiration: FixtureDate.AddDate(0, 0, dte), DTE: dte}
	n := len(spxStrikes)
	for i, k := range spxStrikes {
		j := n - 1 - i
		s.Calls = append(s.Calls, Leg(k, spxCallBid[i], spxCallAsk[i], spxCallDelta[i], spxVolume[i], spxIV[i]))
		s.Puts = append(s.Puts, Leg(k, spxCallBid[j], spxCallAsk[j], -spxCallDelta[j], spxVolume[j], spxIV[j]))
	}
	return s
}

// Leg builds a leg with default Greeks for the given quote
func Leg(strike, bid, ask, delta float64, volume int64, iv float64) condor.OptionLeg {
	return condor.OptionLeg{
		Strike:            strike,
		Bid:               bid,
		Ask:               ask,
		Delta:             delta,
		Gamma:             0.01,
		Theta:             -0.01,
		Vega:              0.1,
		Volume:            volume,
		OpenInterest:      500,
		ImpliedVolatility: iv,
	}
}

// MockChain returns the chain the mock provider serves on FixtureDate
func MockChain(symbol string) *condor.Chain {
	c := &condor.Chain{Symbol: symbol, Spot: marketdata.MockSpot, FetchedAt: FixtureDate}
	for _, dte := range marketdata.MockExpirations {
		c.Expirations = append(c.Expirations, marketdata.MockSlice(FixtureDate.AddDate(0, 0, dte), dte))
	}
	return c
}

// Candidate returns a scored candidate for export and chart tests
func Candidate(symbol string) condor.Candidate {
	return condor.Candidate{
		Symbol:              symbol,
		Expiration:          FixtureDate.AddDate(0, 0, 7),
		DTE:                 7,
		LongPutStrike:       5150,
		ShortPutStrike:      5200,
		ShortCallStrike:     5400,
		LongCallStrike:      5450,
		NetCredit:           12,
		MaxLoss:             3800,
		PositionDelta:       0,
		PositionGamma:       0,
		PositionTheta:       0,
		PositionVega:        0,
		ProbabilityOfProfit: 0.8125,
		ExpectedProfit:      262.5,
		RiskReward:          3800.0 / 1200.0,
		AvgSpreadPct:        6.25,
		StrategyScore:       58.5,
		PutWidth:            50,
		CallWidth:           50,
		ImpliedVolatility:   0.18,
		PutDistancePct:      1.8868,
		CallDistancePct:     1.8868,
	}
}
