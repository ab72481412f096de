package condor

import (
	"math"
	"sort"
)

const (
	// DistanceTolerancePct is the half-width, in percentage points, of the
	// window around the target short-strike distance
	DistanceTolerancePct = 0.5
	// MaxShortStrikesPerSide bounds the short-strike candidates kept per side
	MaxShortStrikesPerSide = 3
)

// CandidateEnumerator builds the bounded set of 4-leg structures worth
// scoring for one expiration
type CandidateEnumerator struct {
	tolerancePct float64
	maxShorts    int
}

// NewCandidateEnumerator creates an enumerator with the standard window and
// short-strike limit
func NewCandidateEnumerator() *CandidateEnumerator {
	return &CandidateEnumerator{
		tolerancePct: DistanceTolerancePct,
		maxShorts:    MaxShortStrikesPerSide,
	}
}

// DistancePct returns how far strike sits from spot, in percent of spot
func DistancePct(strike, spot float64) float64 {
	if spot <= 0 {
		return 0
	}
	return math.Abs(strike-spot) / spot * 100
}

// Enumerate returns the priced, positive-credit structures around the
// target short strikes. When none survive and keepBest is set, the single
// best available structure within the delta limit is returned tagged
// BestAvailable.
func (e *CandidateEnumerator) Enumerate(f FilteredSlice, spot float64, params SearchParameters) ([]Structure, RejectionStats) {
	var stats RejectionStats
	targetPut, targetCall := StrikeRange(spot, params.MaxMovePct)

	shortPuts := e.shortCandidates(f.Puts, spot, targetPut, params.MaxMovePct)
	shortCalls := e.shortCandidates(f.Calls, spot, targetCall, params.MaxMovePct)

	var out []Structure
	for _, sp := range shortPuts {
		lp, ok := longPut(f.Puts, sp.Strike, params.SpreadWidth)
		if !ok {
			stats.Bounds += len(shortCalls)
			continue
		}
		for _, sc := range shortCalls {
			lc, ok := longCall(f.Calls, sc.Strike, params.SpreadWidth)
			if !ok {
				stats.Bounds++
				continue
			}

			s := Structure{LongPut: lp, ShortPut: sp, ShortCall: sc, LongCall: lc}
			if !allPriced(s) {
				stats.Pricing++
				continue
			}
			if s.NetCredit() <= 0 {
				stats.Credit++
				continue
			}
			out = append(out, s)
		}
	}

	if len(out) == 0 && params.KeepBest {
		if best, ok := e.bestAvailable(f, spot, targetPut, targetCall, params.SpreadWidth, params.MaxDelta); ok {
			out = append(out, best)
		}
	}
	return out, stats
}

// shortCandidates selects legs inside the tolerance window, falling back to
// every OTM leg when the window is empty, and keeps the closest few.
func (e *CandidateEnumerator) shortCandidates(legs []OptionLeg, spot, target, pct float64) []OptionLeg {
	var pool []OptionLeg
	for _, leg := range legs {
		if math.Abs(DistancePct(leg.Strike, spot)-pct) <= e.tolerancePct {
			pool = append(pool, leg)
		}
	}
	if len(pool) == 0 {
		pool = append(pool, legs...)
	}

	sort.SliceStable(pool, func(i, j int) bool {
		return math.Abs(pool[i].Strike-target) < math.Abs(pool[j].Strike-target)
	})
	if len(pool) > e.maxShorts {
		pool = pool[:e.maxShorts]
	}
	return pool
}

// longPut picks the put below shortStrike closest to shortStrike-width.
// Ties go to the strike nearer the short leg.
func longPut(puts []OptionLeg, shortStrike, width float64) (OptionLeg, bool) {
	want := shortStrike - width
	var best OptionLeg
	found := false
	for _, p := range puts {
		if p.Strike >= shortStrike {
			continue
		}
		if !found || closer(p.Strike, best.Strike, want, true) {
			best = p
			found = true
		}
	}
	return best, found
}

// longCall picks the call above shortStrike closest to shortStrike+width.
// Ties go to the strike nearer the short leg.
func longCall(calls []OptionLeg, shortStrike, width float64) (OptionLeg, bool) {
	want := shortStrike + width
	var best OptionLeg
	found := false
	for _, c := range calls {
		if c.Strike <= shortStrike {
			continue
		}
		if !found || closer(c.Strike, best.Strike, want, false) {
			best = c
			found = true
		}
	}
	return best, found
}

// closer reports whether candidate beats current as the strike nearest want.
// preferHigher breaks ties toward the higher strike.
func closer(candidate, current, want float64, preferHigher bool) bool {
	dc, dcur := math.Abs(candidate-want), math.Abs(current-want)
	if dc != dcur {
		return dc < dcur
	}
	if preferHigher {
		return candidate > current
	}
	return candidate < current
}

func allPriced(s Structure) bool {
	for _, leg := range s.Legs() {
		if !leg.IsPriced() {
			return false
		}
	}
	return true
}

// bestAvailable scans every OTM short pairing, ignoring the tolerance window
// and short-strike cap, and returns the priced positive-credit structure
// within maxDelta whose shorts sit closest to target. Net credit breaks ties.
func (e *CandidateEnumerator) bestAvailable(f FilteredSlice, spot, targetPut, targetCall, width, maxDelta float64) (Structure, bool) {
	var (
		best      Structure
		bestScore = math.Inf(1)
		found     bool
	)

	for _, sp := range f.Puts {
		lp, ok := longPut(f.Puts, sp.Strike, width)
		if !ok {
			continue
		}
		for _, sc := range f.Calls {
			lc, ok := longCall(f.Calls, sc.Strike, width)
			if !ok {
				continue
			}
			s := Structure{LongPut: lp, ShortPut: sp, ShortCall: sc, LongCall: lc, BestAvailable: true}
			if !allPriced(s) || s.NetCredit() <= 0 || math.Abs(s.Delta()) > maxDelta {
				continue
			}

			score := (math.Abs(sp.Strike-targetPut) + math.Abs(sc.Strike-targetCall)) / spot
			if score < bestScore || (score == bestScore && s.NetCredit() > best.NetCredit()) {
				best = s
				bestScore = score
				found = true
			}
		}
	}
	return best, found
}
