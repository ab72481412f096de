package marketdata

import (
	"math"
	"sort"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
)

// GreekDefaults are substituted for Greeks a provider does not report
type GreekDefaults struct {
	Delta float64 `json:"delta" yaml:"delta"`
	Gamma float64 `json:"gamma" yaml:"gamma"`
	Theta float64 `json:"theta" yaml:"theta"`
	Vega  float64 `json:"vega" yaml:"vega"`
}

// DefaultGreeks returns the fallback Greeks applied at the source boundary
func DefaultGreeks() GreekDefaults {
	return GreekDefaults{Delta: 0, Gamma: 0.01, Theta: -0.01, Vega: 0.1}
}

// RawContract is one option quote as reported by a provider. Nil pointers
// mark values the provider did not send.
type RawContract struct {
	Strike       float64  `json:"strikePrice"`
	Bid          float64  `json:"bid"`
	Ask          float64  `json:"ask"`
	Delta        *float64 `json:"delta"`
	Gamma        *float64 `json:"gamma"`
	Theta        *float64 `json:"theta"`
	Vega         *float64 `json:"vega"`
	Volume       *int64   `json:"totalVolume"`
	OpenInterest *int64   `json:"openInterest"`
	Volatility   *float64 `json:"volatility"`
}

// Normalizer converts provider quotes into engine legs
type Normalizer struct {
	defaults GreekDefaults
}

// NewNormalizer creates a normalizer with the given Greek defaults
func NewNormalizer(defaults GreekDefaults) *Normalizer {
	return &Normalizer{defaults: defaults}
}

// Leg converts one raw contract. Put deltas reported as positive are
// flipped to the negative convention.
func (n *Normalizer) Leg(raw RawContract, isPut bool) condor.OptionLeg {
	leg := condor.OptionLeg{
		Strike:            raw.Strike,
		Bid:               nonNegative(raw.Bid),
		Ask:               nonNegative(raw.Ask),
		Delta:             floatOr(raw.Delta, n.defaults.Delta),
		Gamma:             floatOr(raw.Gamma, n.defaults.Gamma),
		Theta:             floatOr(raw.Theta, n.defaults.Theta),
		Vega:              floatOr(raw.Vega, n.defaults.Vega),
		Volume:            intOr(raw.Volume, 0),
		OpenInterest:      intOr(raw.OpenInterest, 0),
		ImpliedVolatility: floatOr(raw.Volatility, 0),
	}
	if isPut && leg.Delta > 0 {
		leg.Delta = -leg.Delta
	}
	return leg
}

// Legs converts a batch of contracts, dropping non-positive strikes and
// keeping the first quote per strike. The result is sorted by strike.
func (n *Normalizer) Legs(raws []RawContract, isPut bool) []condor.OptionLeg {
	seen := make(map[float64]bool, len(raws))
	legs := make([]condor.OptionLeg, 0, len(raws))
	for _, raw := range raws {
		if raw.Strike <= 0 || math.IsNaN(raw.Strike) || seen[raw.Strike] {
			continue
		}
		seen[raw.Strike] = true
		legs = append(legs, n.Leg(raw, isPut))
	}
	sort.Slice(legs, func(i, j int) bool { return legs[i].Strike < legs[j].Strike })
	return legs
}

// Normalize applies the default Greeks to a batch of contracts
func Normalize(raws []RawContract, isPut bool) []condor.OptionLeg {
	return NewNormalizer(DefaultGreeks()).Legs(raws, isPut)
}

func floatOr(v *float64, def float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return def
	}
	return *v
}

func intOr(v *int64, def int64) int64 {
	if v == nil || *v < 0 {
		return def
	}
	return *v
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
