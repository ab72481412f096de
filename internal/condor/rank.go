package condor

import (
	"math"
	"sort"
)

// Ranker filters candidates by delta neutrality and orders them
type Ranker struct{}

// NewRanker creates a ranker
func NewRanker() *Ranker {
	return &Ranker{}
}

// Filter drops candidates with |delta| above maxDelta and returns how many
// were dropped
func (r *Ranker) Filter(cands []Candidate, maxDelta float64) ([]Candidate, int) {
	kept := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if math.Abs(c.PositionDelta) > maxDelta {
			continue
		}
		kept = append(kept, c)
	}
	return kept, len(cands) - len(kept)
}

// Sort orders candidates in place by the given method. The sort is stable,
// so equal keys keep enumeration order.
func (r *Ranker) Sort(cands []Candidate, by SortMethod) {
	var less func(a, b Candidate) bool
	switch by {
	case SortByExpectedProfit:
		less = func(a, b Candidate) bool { return a.ExpectedProfit > b.ExpectedProfit }
	case SortByProbability:
		less = func(a, b Candidate) bool { return a.ProbabilityOfProfit > b.ProbabilityOfProfit }
	case SortByScore:
		less = func(a, b Candidate) bool { return a.StrategyScore > b.StrategyScore }
	default:
		less = func(a, b Candidate) bool { return a.RiskReward < b.RiskReward }
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return less(cands[i], cands[j])
	})
}

// Rank filters, sorts and truncates to limit (limit <= 0 keeps all)
func (r *Ranker) Rank(cands []Candidate, maxDelta float64, by SortMethod, limit int) ([]Candidate, int) {
	kept, dropped := r.Filter(cands, maxDelta)
	r.Sort(kept, by)
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept, dropped
}
