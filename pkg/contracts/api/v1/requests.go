// Package api contains the HTTP contract of the condor finder.
// Version v1 represents the current stable API version.
package api

import (
	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
)

// SearchRequest overrides the configured search defaults. Nil fields keep
// the default, so an explicit zero (min_dte=0) is distinguishable from an
// omitted field.
type SearchRequest struct {
	Symbol           *string  `json:"symbol,omitempty" query:"symbol"`
	MaxMovePct       *float64 `json:"max_move_pct,omitempty" query:"max_move_pct"`
	MaxDelta         *float64 `json:"max_delta,omitempty" query:"max_delta"`
	MinDTE           *int     `json:"min_dte,omitempty" query:"min_dte"`
	MaxDTE           *int     `json:"max_dte,omitempty" query:"max_dte"`
	MinLiquidity     *int64   `json:"min_liquidity,omitempty" query:"min_liquidity"`
	SpreadWidth      *float64 `json:"spread_width,omitempty" query:"spread_width"`
	NumResults       *int     `json:"num_results,omitempty" query:"num_results"`
	SortBy           *string  `json:"sort_by,omitempty" query:"sort_by"`
	KeepBest         *bool    `json:"keep_best,omitempty" query:"keep_best"`
	RelaxedLiquidity *bool    `json:"relaxed_liquidity,omitempty" query:"relaxed_liquidity"`
	ChartTopN        *int     `json:"chart_top_n,omitempty" query:"chart_top_n"`
}

// Apply overlays the request onto defaults. Validation happens afterwards
// on the merged parameters.
func (r SearchRequest) Apply(defaults condor.SearchParameters) condor.SearchParameters {
	p := defaults
	if r.Symbol != nil {
		p.Symbol = *r.Symbol
	}
	if r.MaxMovePct != nil {
		p.MaxMovePct = *r.MaxMovePct
	}
	if r.MaxDelta != nil {
		p.MaxDelta = *r.MaxDelta
	}
	if r.MinDTE != nil {
		p.MinDTE = *r.MinDTE
	}
	if r.MaxDTE != nil {
		p.MaxDTE = *r.MaxDTE
	}
	if r.MinLiquidity != nil {
		p.MinLiquidity = *r.MinLiquidity
	}
	if r.SpreadWidth != nil {
		p.SpreadWidth = *r.SpreadWidth
	}
	if r.NumResults != nil {
		p.NumResults = *r.NumResults
	}
	if r.SortBy != nil {
		if m, err := condor.ParseSortMethod(*r.SortBy); err == nil {
			p.SortBy = m
		} else {
			p.SortBy = condor.SortMethod(*r.SortBy)
		}
	}
	if r.KeepBest != nil {
		p.KeepBest = *r.KeepBest
	}
	if r.RelaxedLiquidity != nil {
		p.RelaxedLiquidity = *r.RelaxedLiquidity
	}
	if r.ChartTopN != nil {
		p.ChartTopN = *r.ChartTopN
	}
	return p
}

// ExportRequest selects the download format of a search
type ExportRequest struct {
	SearchRequest
	Format string `json:"format" query:"format" validate:"required,oneof=csv xlsx json"`
}
