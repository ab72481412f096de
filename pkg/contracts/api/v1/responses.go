package api

import (
	"math"
	"time"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
)

// CandidateResponse is a candidate on the wire. RiskReward is null when
// unbounded.
type CandidateResponse struct {
	Rank                int      `json:"rank"`
	Symbol              string   `json:"symbol"`
	Expiration          string   `json:"expiration"`
	DTE                 int      `json:"dte"`
	LongPutStrike       float64  `json:"long_put_strike"`
	ShortPutStrike      float64  `json:"short_put_strike"`
	ShortCallStrike     float64  `json:"short_call_strike"`
	LongCallStrike      float64  `json:"long_call_strike"`
	NetCredit           float64  `json:"net_credit"`
	MaxLoss             float64  `json:"max_loss"`
	PositionDelta       float64  `json:"position_delta"`
	PositionGamma       float64  `json:"position_gamma"`
	PositionTheta       float64  `json:"position_theta"`
	PositionVega        float64  `json:"position_vega"`
	ProbabilityOfProfit float64  `json:"probability_of_profit"`
	ExpectedProfit      float64  `json:"expected_profit"`
	RiskReward          *float64 `json:"risk_reward"`
	AvgSpreadPct        float64  `json:"avg_spread_pct"`
	StrategyScore       float64  `json:"strategy_score"`
	PutWidth            float64  `json:"put_width"`
	CallWidth           float64  `json:"call_width"`
	ImpliedVolatility   float64  `json:"implied_volatility"`
	PutDistancePct      float64  `json:"put_distance_pct"`
	CallDistancePct     float64  `json:"call_distance_pct"`
	BestAvailable       bool     `json:"best_available"`
	ChartURL            string   `json:"chart_url,omitempty"`
}

// NewCandidateResponse converts a candidate. rank is one-based.
func NewCandidateResponse(rank int, c condor.Candidate) CandidateResponse {
	var rr *float64
	if c.HasFiniteRiskReward() {
		v := c.RiskReward
		rr = &v
	}
	return CandidateResponse{
		Rank:                rank,
		Symbol:              c.Symbol,
		Expiration:          c.ExpirationLabel(),
		DTE:                 c.DTE,
		LongPutStrike:       c.LongPutStrike,
		ShortPutStrike:      c.ShortPutStrike,
		ShortCallStrike:     c.ShortCallStrike,
		LongCallStrike:      c.LongCallStrike,
		NetCredit:           c.NetCredit,
		MaxLoss:             c.MaxLoss,
		PositionDelta:       c.PositionDelta,
		PositionGamma:       c.PositionGamma,
		PositionTheta:       c.PositionTheta,
		PositionVega:        c.PositionVega,
		ProbabilityOfProfit: c.ProbabilityOfProfit,
		ExpectedProfit:      c.ExpectedProfit,
		RiskReward:          rr,
		AvgSpreadPct:        c.AvgSpreadPct,
		StrategyScore:       c.StrategyScore,
		PutWidth:            c.PutWidth,
		CallWidth:           c.CallWidth,
		ImpliedVolatility:   c.ImpliedVolatility,
		PutDistancePct:      c.PutDistancePct,
		CallDistancePct:     c.CallDistancePct,
		BestAvailable:       c.BestAvailable,
	}
}

// Highlight names the best candidate by one criterion
type Highlight struct {
	Criterion string            `json:"criterion"`
	Candidate CandidateResponse `json:"candidate"`
}

// Summary aggregates one result list
type Summary struct {
	Count                   int         `json:"count"`
	Expirations             int         `json:"expirations"`
	MeanCredit              float64     `json:"mean_credit"`
	MaxCredit               float64     `json:"max_credit"`
	MedianProbability       float64     `json:"median_probability"`
	MaxProbability          float64     `json:"max_probability"`
	MeanExpectedProfit      float64     `json:"mean_expected_profit"`
	MeanImpliedVolatility   float64     `json:"mean_implied_volatility"`
	MeanSpreadPct           float64     `json:"mean_spread_pct"`
	BestAvailableCandidates int         `json:"best_available_candidates"`
	Highlights              []Highlight `json:"highlights,omitempty"`
}

// TraceResponse is the diagnostic record of a search
type TraceResponse struct {
	TraceID              string                `json:"trace_id"`
	States               []condor.SearchState  `json:"states"`
	ExpirationsSeen      int                   `json:"expirations_seen"`
	ExpirationsProcessed int                   `json:"expirations_processed"`
	StructuresEnumerated int                   `json:"structures_enumerated"`
	CandidatesScored     int                   `json:"candidates_scored"`
	Rejections           condor.RejectionStats `json:"rejections"`
	DurationMS           float64               `json:"duration_ms"`
}

// NewTraceResponse converts a search trace
func NewTraceResponse(t condor.SearchTrace) TraceResponse {
	return TraceResponse{
		TraceID:              t.TraceID,
		States:               t.States,
		ExpirationsSeen:      t.ExpirationsSeen,
		ExpirationsProcessed: t.ExpirationsProcessed,
		StructuresEnumerated: t.StructuresEnumerated,
		CandidatesScored:     t.CandidatesScored,
		Rejections:           t.Rejections,
		DurationMS:           math.Round(float64(t.Duration.Microseconds())) / 1000,
	}
}

// SearchResponse is the body of a search call
type SearchResponse struct {
	Symbol      string                  `json:"symbol"`
	Spot        float64                 `json:"spot"`
	Relaxed     bool                    `json:"relaxed"`
	Parameters  condor.SearchParameters `json:"parameters"`
	Candidates  []CandidateResponse     `json:"candidates"`
	Summary     Summary                 `json:"summary"`
	Trace       TraceResponse           `json:"trace"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// NewSearchResponse converts a result. chartURLs is parallel to the leading
// candidates and may be shorter than the list.
func NewSearchResponse(r *condor.Result, summary Summary, chartURLs []string, now time.Time) SearchResponse {
	resp := SearchResponse{
		Candidates:  []CandidateResponse{},
		Summary:     summary,
		GeneratedAt: now.UTC(),
	}
	if r == nil {
		return resp
	}
	resp.Symbol = r.Symbol
	resp.Spot = r.Spot
	resp.Relaxed = r.Relaxed
	resp.Parameters = r.Params
	resp.Trace = NewTraceResponse(r.Trace)
	for i, c := range r.Candidates {
		cr := NewCandidateResponse(i+1, c)
		if i < len(chartURLs) {
			cr.ChartURL = chartURLs[i]
		}
		resp.Candidates = append(resp.Candidates, cr)
	}
	return resp
}
