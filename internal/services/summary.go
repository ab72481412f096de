package services

import (
	"math"

	"github.com/montanaflynn/stats"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
	api "github.com/xingfanxia/iron-condor-combo-finder/pkg/contracts/api/v1"
)

// Highlight criteria
const (
	CriterionProbability = "highest_probability"
	CriterionLowestDelta = "lowest_delta"
	CriterionCredit      = "highest_credit"
	CriterionScore       = "highest_score"
)

// Summarize aggregates the candidate list of result. Highlights pick the
// best candidate per criterion; ties go to the higher ranked one.
func Summarize(result *condor.Result) api.Summary {
	if result.IsEmpty() {
		return api.Summary{}
	}
	cs := result.Candidates

	n := len(cs)
	credits := make([]float64, 0, n)
	probs := make([]float64, 0, n)
	profits := make([]float64, 0, n)
	ivs := make([]float64, 0, n)
	spreads := make([]float64, 0, n)
	expirations := make(map[string]struct{})
	best := 0

	for _, c := range cs {
		credits = append(credits, c.NetCredit)
		probs = append(probs, c.ProbabilityOfProfit)
		profits = append(profits, c.ExpectedProfit)
		ivs = append(ivs, c.ImpliedVolatility)
		spreads = append(spreads, c.AvgSpreadPct)
		expirations[c.ExpirationLabel()] = struct{}{}
		if c.BestAvailable {
			best++
		}
	}

	s := api.Summary{
		Count:                   n,
		Expirations:             len(expirations),
		BestAvailableCandidates: best,
	}
	// The inputs are non-empty, so stats only fails on empty data
	s.MeanCredit, _ = stats.Mean(credits)
	s.MaxCredit, _ = stats.Max(credits)
	s.MedianProbability, _ = stats.Median(probs)
	s.MaxProbability, _ = stats.Max(probs)
	s.MeanExpectedProfit, _ = stats.Mean(profits)
	s.MeanImpliedVolatility, _ = stats.Mean(ivs)
	s.MeanSpreadPct, _ = stats.Mean(spreads)

	s.Highlights = []api.Highlight{
		highlight(CriterionProbability, cs, func(c condor.Candidate) float64 { return c.ProbabilityOfProfit }),
		highlight(CriterionLowestDelta, cs, func(c condor.Candidate) float64 { return -math.Abs(c.PositionDelta) }),
		highlight(CriterionCredit, cs, func(c condor.Candidate) float64 { return c.NetCredit }),
		highlight(CriterionScore, cs, func(c condor.Candidate) float64 { return c.StrategyScore }),
	}
	return s
}

func highlight(criterion string, cs []condor.Candidate, key func(condor.Candidate) float64) api.Highlight {
	idx := 0
	for i := 1; i < len(cs); i++ {
		if key(cs[i]) > key(cs[idx]) {
			idx = i
		}
	}
	return api.Highlight{
		Criterion: criterion,
		Candidate: api.NewCandidateResponse(idx+1, cs[idx]),
	}
}
