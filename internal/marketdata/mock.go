package marketdata

import (
	"context"
	"time"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
)

// MockExpirations are the days-to-expiration offsets the mock chain lists
var MockExpirations = []int{1, 3, 7, 14, 30, 60}

// mock quote table around a 5300 spot, calls by ascending strike
var (
	mockStrikes   = []float64{5100, 5150, 5200, 5250, 5300, 5350, 5400, 5450, 5500}
	mockCallBid   = []float64{208, 163, 124, 90, 60, 36, 20, 10, 5}
	mockCallAsk   = []float64{212, 167, 128, 94, 64, 40, 24, 14, 7}
	mockCallDelta = []float64{0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1}
	mockGamma     = []float64{0.01, 0.015, 0.02, 0.025, 0.03, 0.025, 0.02, 0.015, 0.01}
	mockTheta     = []float64{-1.0, -1.2, -1.4, -1.6, -1.8, -1.6, -1.4, -1.2, -1.0}
	mockVega      = []float64{1.0, 1.5, 2.0, 2.5, 3.0, 2.5, 2.0, 1.5, 1.0}
	mockVolume    = []int64{500, 450, 400, 350, 300, 250, 200, 150, 100}
	mockOI        = []int64{2000, 1800, 1600, 1400, 1200, 1000, 800, 600, 400}
	mockIV        = []float64{0.14, 0.15, 0.16, 0.17, 0.18, 0.19, 0.20, 0.21, 0.22}
)

// MockSpot is the underlying price reported by MockSource
const MockSpot = 5300.0

// MockSource serves a deterministic synthetic chain. Quotes and IVs scale
// up with DTE so later expirations are richer.
type MockSource struct {
	spot  float64
	dtes  []int
	clock Clock
}

// NewMockSource creates a mock source. A nil clock uses time.Now.
func NewMockSource(clock Clock) *MockSource {
	if clock == nil {
		clock = time.Now
	}
	return &MockSource{spot: MockSpot, dtes: MockExpirations, clock: clock}
}

// Name returns the provider name
func (m *MockSource) Name() string {
	return "mock"
}

// Spot returns the fixed mock price
func (m *MockSource) Spot(ctx context.Context, _ string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return m.spot, nil
}

// Chain returns the synthetic expirations inside the DTE window
func (m *MockSource) Chain(ctx context.Context, symbol string, minDTE, maxDTE int) (*condor.Chain, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := m.clock()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	chain := &condor.Chain{Symbol: symbol, Spot: m.spot, FetchedAt: now}
	for _, dte := range m.dtes {
		if !InWindow(dte, minDTE, maxDTE) {
			continue
		}
		chain.Expirations = append(chain.Expirations, MockSlice(today.AddDate(0, 0, dte), dte))
	}
	return chain, nil
}

// MockSlice builds one synthetic expiration. Prices scale by 1+dte/200 and
// implied volatility by 1+dte/100.
func MockSlice(expiration time.Time, dte int) condor.ExpirationSlice {
	priceAdj := 1 + float64(dte)/200
	ivAdj := 1 + float64(dte)/100

	slice := condor.ExpirationSlice{Expiration: expiration, DTE: dte}
	n := len(mockStrikes)
	for i, strike := range mockStrikes {
		slice.Calls = append(slice.Calls, condor.OptionLeg{
			Strike:            strike,
			Bid:               mockCallBid[i] * priceAdj,
			Ask:               mockCallAsk[i] * priceAdj,
			Delta:             mockCallDelta[i],
			Gamma:             mockGamma[i],
			Theta:             mockTheta[i],
			Vega:              mockVega[i],
			Volume:            mockVolume[i],
			OpenInterest:      mockOI[i],
			ImpliedVolatility: mockIV[i] * ivAdj,
		})

		// puts mirror the call table around the money
		j := n - 1 - i
		slice.Puts = append(slice.Puts, condor.OptionLeg{
			Strike:            strike,
			Bid:               mockCallBid[j] * priceAdj,
			Ask:               mockCallAsk[j] * priceAdj,
			Delta:             -mockCallDelta[j],
			Gamma:             mockGamma[i],
			Theta:             mockTheta[i],
			Vega:              mockVega[i],
			Volume:            mockVolume[j],
			OpenInterest:      mockOI[j],
			ImpliedVolatility: mockIV[j] * ivAdj,
		})
	}
	return slice
}
