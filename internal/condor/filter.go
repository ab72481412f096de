package condor

import (
	"sort"
)

// minOTMLegs is the fewest OTM legs a side needs to form a vertical spread
const minOTMLegs = 2

// FilteredSlice holds the liquid, out-of-the-money legs of one expiration
type FilteredSlice struct {
	Expiration ExpirationSlice
	// Puts are OTM puts (strike < spot), ascending by strike
	Puts []OptionLeg
	// Calls are OTM calls (strike > spot), ascending by strike
	Calls []OptionLeg
	// Rejections counts legs discarded for liquidity
	Rejections RejectionStats
}

// ChainFilter cleans the legs of one expiration
type ChainFilter struct{}

// NewChainFilter creates a chain filter
func NewChainFilter() *ChainFilter {
	return &ChainFilter{}
}

// LiquidityThreshold returns the effective volume threshold. The relaxed
// variant halves it.
func LiquidityThreshold(minLiquidity int64, relaxed bool) int64 {
	if relaxed {
		return minLiquidity / 2
	}
	return minLiquidity
}

// Filter drops illiquid legs, sorts by strike and keeps the OTM side of each
// list. ok is false when either side has fewer than two OTM legs; that
// expiration should be skipped.
func (f *ChainFilter) Filter(slice ExpirationSlice, spot float64, minLiquidity int64, relaxed bool) (FilteredSlice, bool) {
	threshold := LiquidityThreshold(minLiquidity, relaxed)
	out := FilteredSlice{Expiration: slice}

	puts, droppedPuts := liquidLegs(slice.Puts, threshold)
	calls, droppedCalls := liquidLegs(slice.Calls, threshold)
	out.Rejections.Liquidity = droppedPuts + droppedCalls

	for _, p := range puts {
		if p.Strike < spot {
			out.Puts = append(out.Puts, p)
		}
	}
	for _, c := range calls {
		if c.Strike > spot {
			out.Calls = append(out.Calls, c)
		}
	}

	if len(out.Puts) < minOTMLegs || len(out.Calls) < minOTMLegs {
		out.Rejections.SkippedExpirations = 1
		return out, false
	}
	return out, true
}

func liquidLegs(legs []OptionLeg, threshold int64) ([]OptionLeg, int) {
	kept := make([]OptionLeg, 0, len(legs))
	dropped := 0
	for _, leg := range legs {
		if leg.Volume < threshold {
			dropped++
			continue
		}
		kept = append(kept, leg)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Strike < kept[j].Strike
	})
	return kept, dropped
}
