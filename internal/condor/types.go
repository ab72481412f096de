package condor

import (
	"math"
	"time"
)

// ContractMultiplier is the number of shares controlled by one option contract
const ContractMultiplier = 100.0

// OptionLeg is the normalized representation of one option contract.
// Missing Greeks and volume are resolved by the data source before a leg
// reaches the engine.
type OptionLeg struct {
	Strike            float64 `json:"strike" csv:"strike"`
	Bid               float64 `json:"bid" csv:"bid"`
	Ask               float64 `json:"ask" csv:"ask"`
	Delta             float64 `json:"delta" csv:"delta"`
	Gamma             float64 `json:"gamma" csv:"gamma"`
	Theta             float64 `json:"theta" csv:"theta"`
	Vega              float64 `json:"vega" csv:"vega"`
	Volume            int64   `json:"volume" csv:"volume"`
	OpenInterest      int64   `json:"open_interest" csv:"open_interest"`
	ImpliedVolatility float64 `json:"implied_volatility" csv:"implied_volatility"`
}

// Mid returns the midpoint between bid and ask
func (l OptionLeg) Mid() float64 {
	return (l.Bid + l.Ask) / 2
}

// Spread returns the absolute bid/ask spread
func (l OptionLeg) Spread() float64 {
	return l.Ask - l.Bid
}

// IsPriced reports whether both sides of the quote are positive
func (l OptionLeg) IsPriced() bool {
	return l.Bid > 0 && l.Ask > 0
}

// ExpirationSlice groups all legs sharing one expiration date
type ExpirationSlice struct {
	Expiration time.Time   `json:"expiration"`
	DTE        int         `json:"dte"`
	Calls      []OptionLeg `json:"calls"`
	Puts       []OptionLeg `json:"puts"`
}

// Label returns the expiration formatted as YYYY-MM-DD
func (s ExpirationSlice) Label() string {
	return s.Expiration.Format(DateLayout)
}

// Chain is one normalized option-chain snapshot for a symbol
type Chain struct {
	Symbol      string            `json:"symbol"`
	Spot        float64           `json:"spot"`
	FetchedAt   time.Time         `json:"fetched_at"`
	Expirations []ExpirationSlice `json:"expirations"`
}

// DateLayout is the expiration date format used across the engine
const DateLayout = "2006-01-02"

// Structure is an unscored 4-leg combination
type Structure struct {
	LongPut       OptionLeg
	ShortPut      OptionLeg
	ShortCall     OptionLeg
	LongCall      OptionLeg
	BestAvailable bool
}

// NetCredit returns the premium received minus premium paid, per share
func (s Structure) NetCredit() float64 {
	return (s.ShortPut.Bid - s.LongPut.Ask) + (s.ShortCall.Bid - s.LongCall.Ask)
}

// Delta returns the summed delta of the four legs
func (s Structure) Delta() float64 {
	return s.LongPut.Delta + s.ShortPut.Delta + s.ShortCall.Delta + s.LongCall.Delta
}

// Legs returns the four legs in strike order
func (s Structure) Legs() []OptionLeg {
	return []OptionLeg{s.LongPut, s.ShortPut, s.ShortCall, s.LongCall}
}

// IsOrdered reports whether strikes satisfy lp < sp < sc < lc
func (s Structure) IsOrdered() bool {
	return s.LongPut.Strike < s.ShortPut.Strike &&
		s.ShortPut.Strike < s.ShortCall.Strike &&
		s.ShortCall.Strike < s.LongCall.Strike
}

// Candidate is a fully scored iron condor. It is built once by the
// MetricsCalculator and never mutated afterwards.
type Candidate struct {
	Symbol              string    `json:"symbol"`
	Expiration          time.Time `json:"expiration"`
	DTE                 int       `json:"dte"`
	LongPutStrike       float64   `json:"long_put_strike"`
	ShortPutStrike      float64   `json:"short_put_strike"`
	ShortCallStrike     float64   `json:"short_call_strike"`
	LongCallStrike      float64   `json:"long_call_strike"`
	NetCredit           float64   `json:"net_credit"`
	MaxLoss             float64   `json:"max_loss"`
	PositionDelta       float64   `json:"position_delta"`
	PositionGamma       float64   `json:"position_gamma"`
	PositionTheta       float64   `json:"position_theta"`
	PositionVega        float64   `json:"position_vega"`
	ProbabilityOfProfit float64   `json:"probability_of_profit"`
	ExpectedProfit      float64   `json:"expected_profit"`
	RiskReward          float64   `json:"risk_reward"`
	AvgSpreadPct        float64   `json:"avg_spread_pct"`
	StrategyScore       float64   `json:"strategy_score"`

	// Derived supporting fields
	PutWidth          float64 `json:"put_width"`
	CallWidth         float64 `json:"call_width"`
	ImpliedVolatility float64 `json:"implied_volatility"`
	PutDistancePct    float64 `json:"put_distance_pct"`
	CallDistancePct   float64 `json:"call_distance_pct"`
	BestAvailable     bool    `json:"best_available"`
}

// ExpirationLabel returns the expiration formatted as YYYY-MM-DD
func (c Candidate) ExpirationLabel() string {
	return c.Expiration.Format(DateLayout)
}

// IsValid checks the structural invariants of a candidate against spot
func (c Candidate) IsValid(spot float64) bool {
	return c.LongPutStrike < c.ShortPutStrike &&
		c.ShortPutStrike < spot &&
		spot < c.ShortCallStrike &&
		c.ShortCallStrike < c.LongCallStrike &&
		c.NetCredit > 0 &&
		c.ProbabilityOfProfit >= MinProbability &&
		c.ProbabilityOfProfit <= MaxProbability
}

// HasFiniteRiskReward reports whether RiskReward is a real number
func (c Candidate) HasFiniteRiskReward() bool {
	return !math.IsInf(c.RiskReward, 0) && !math.IsNaN(c.RiskReward)
}

// SearchState is a stage of one search invocation
type SearchState string

const (
	StateCollectingLegs SearchState = "COLLECTING_LEGS"
	StateEnumerating    SearchState = "ENUMERATING"
	StateScoring        SearchState = "SCORING"
	StateFiltering      SearchState = "FILTERING"
	StateSorted         SearchState = "SORTED"
)

// RejectionStats counts local exclusions by category
type RejectionStats struct {
	Liquidity          int `json:"liquidity"`
	Pricing            int `json:"pricing"`
	Credit             int `json:"credit"`
	Delta              int `json:"delta"`
	Bounds             int `json:"bounds"`
	Spread             int `json:"spread"`
	SkippedExpirations int `json:"skipped_expirations"`
}

// Add accumulates another set of counts
func (r *RejectionStats) Add(other RejectionStats) {
	r.Liquidity += other.Liquidity
	r.Pricing += other.Pricing
	r.Credit += other.Credit
	r.Delta += other.Delta
	r.Bounds += other.Bounds
	r.Spread += other.Spread
	r.SkippedExpirations += other.SkippedExpirations
}

// Total returns the sum of all rejection categories except skipped expirations
func (r RejectionStats) Total() int {
	return r.Liquidity + r.Pricing + r.Credit + r.Delta + r.Bounds + r.Spread
}

// SearchTrace is the per-request diagnostic record of one search
type SearchTrace struct {
	TraceID              string         `json:"trace_id"`
	Symbol               string         `json:"symbol"`
	States               []SearchState  `json:"states"`
	ExpirationsSeen      int            `json:"expirations_seen"`
	ExpirationsProcessed int            `json:"expirations_processed"`
	StructuresEnumerated int            `json:"structures_enumerated"`
	CandidatesScored     int            `json:"candidates_scored"`
	Rejections           RejectionStats `json:"rejections"`
	Duration             time.Duration  `json:"duration"`
}

func (t *SearchTrace) enter(state SearchState) {
	t.States = append(t.States, state)
}

// Final returns the last state the search reached
func (t SearchTrace) Final() SearchState {
	if len(t.States) == 0 {
		return ""
	}
	return t.States[len(t.States)-1]
}

// Result is the output of one search
type Result struct {
	Symbol     string           `json:"symbol"`
	Spot       float64          `json:"spot"`
	Params     SearchParameters `json:"params"`
	Candidates []Candidate      `json:"candidates"`
	Trace      SearchTrace      `json:"trace"`
	Relaxed    bool             `json:"relaxed"`
}

// IsEmpty reports whether the search produced no candidates
func (r *Result) IsEmpty() bool {
	return r == nil || len(r.Candidates) == 0
}
