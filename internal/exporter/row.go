package exporter

import (
	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
)

// ResultRow is one candidate flattened into a table row. Dollar amounts are
// rounded to the cent.
type ResultRow struct {
	Rank                int     `csv:"rank" json:"rank"`
	Symbol              string  `csv:"symbol" json:"symbol"`
	Expiration          string  `csv:"expiration" json:"expiration"`
	DTE                 int     `csv:"dte" json:"dte"`
	LongPutStrike       float64 `csv:"long_put_strike" json:"long_put_strike"`
	ShortPutStrike      float64 `csv:"short_put_strike" json:"short_put_strike"`
	ShortCallStrike     float64 `csv:"short_call_strike" json:"short_call_strike"`
	LongCallStrike      float64 `csv:"long_call_strike" json:"long_call_strike"`
	NetCredit           float64 `csv:"net_credit" json:"net_credit"`
	MaxLoss             float64 `csv:"max_loss" json:"max_loss"`
	PositionDelta       float64 `csv:"position_delta" json:"position_delta"`
	PositionGamma       float64 `csv:"position_gamma" json:"position_gamma"`
	PositionTheta       float64 `csv:"position_theta" json:"position_theta"`
	PositionVega        float64 `csv:"position_vega" json:"position_vega"`
	ProbabilityOfProfit float64 `csv:"probability_of_profit" json:"probability_of_profit"`
	ExpectedProfit      float64 `csv:"expected_profit" json:"expected_profit"`
	RiskReward          Ratio   `csv:"risk_reward" json:"risk_reward"`
	AvgSpreadPct        float64 `csv:"avg_spread_pct" json:"avg_spread_pct"`
	StrategyScore       float64 `csv:"strategy_score" json:"strategy_score"`
	PutWidth            float64 `csv:"put_width" json:"put_width"`
	CallWidth           float64 `csv:"call_width" json:"call_width"`
	ImpliedVolatility   float64 `csv:"implied_volatility" json:"implied_volatility"`
	PutDistancePct      float64 `csv:"put_distance_pct" json:"put_distance_pct"`
	CallDistancePct     float64 `csv:"call_distance_pct" json:"call_distance_pct"`
	BestAvailable       bool    `csv:"best_available" json:"best_available"`
}

// Headers lists the column names in row order
var Headers = []string{
	"rank", "symbol", "expiration", "dte",
	"long_put_strike", "short_put_strike", "short_call_strike", "long_call_strike",
	"net_credit", "max_loss",
	"position_delta", "position_gamma", "position_theta", "position_vega",
	"probability_of_profit", "expected_profit", "risk_reward",
	"avg_spread_pct", "strategy_score",
	"put_width", "call_width", "implied_volatility",
	"put_distance_pct", "call_distance_pct", "best_available",
}

// NewResultRow flattens a candidate. rank is one-based.
func NewResultRow(rank int, symbol string, c condor.Candidate) ResultRow {
	if c.Symbol != "" {
		symbol = c.Symbol
	}
	return ResultRow{
		Rank:                rank,
		Symbol:              symbol,
		Expiration:          c.ExpirationLabel(),
		DTE:                 c.DTE,
		LongPutStrike:       c.LongPutStrike,
		ShortPutStrike:      c.ShortPutStrike,
		ShortCallStrike:     c.ShortCallStrike,
		LongCallStrike:      c.LongCallStrike,
		NetCredit:           roundCents(c.NetCredit),
		MaxLoss:             roundCents(c.MaxLoss),
		PositionDelta:       roundTo(c.PositionDelta, 4),
		PositionGamma:       roundTo(c.PositionGamma, 4),
		PositionTheta:       roundTo(c.PositionTheta, 4),
		PositionVega:        roundTo(c.PositionVega, 4),
		ProbabilityOfProfit: roundTo(c.ProbabilityOfProfit, 4),
		ExpectedProfit:      roundCents(c.ExpectedProfit),
		RiskReward:          Ratio(c.RiskReward),
		AvgSpreadPct:        roundTo(c.AvgSpreadPct, 4),
		StrategyScore:       roundTo(c.StrategyScore, 2),
		PutWidth:            c.PutWidth,
		CallWidth:           c.CallWidth,
		ImpliedVolatility:   roundTo(c.ImpliedVolatility, 4),
		PutDistancePct:      roundTo(c.PutDistancePct, 2),
		CallDistancePct:     roundTo(c.CallDistancePct, 2),
		BestAvailable:       c.BestAvailable,
	}
}

// RowsFromResult flattens every candidate of a result in rank order
func RowsFromResult(result *condor.Result) []ResultRow {
	if result.IsEmpty() {
		return []ResultRow{}
	}
	rows := make([]ResultRow, 0, len(result.Candidates))
	for i, c := range result.Candidates {
		rows = append(rows, NewResultRow(i+1, result.Symbol, c))
	}
	return rows
}

// Values returns the row as spreadsheet cells in Headers order
func (r ResultRow) Values() []interface{} {
	return []interface{}{
		r.Rank, r.Symbol, r.Expiration, r.DTE,
		r.LongPutStrike, r.ShortPutStrike, r.ShortCallStrike, r.LongCallStrike,
		r.NetCredit, r.MaxLoss,
		r.PositionDelta, r.PositionGamma, r.PositionTheta, r.PositionVega,
		r.ProbabilityOfProfit, r.ExpectedProfit, r.RiskReward.cellValue(),
		r.AvgSpreadPct, r.StrategyScore,
		r.PutWidth, r.CallWidth, r.ImpliedVolatility,
		r.PutDistancePct, r.CallDistancePct, r.BestAvailable,
	}
}
