package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	apierrors "github.com/xingfanxia/iron-condor-combo-finder/internal/errors"
	api "github.com/xingfanxia/iron-condor-combo-finder/pkg/contracts/api/v1"
)

// queryParser collects the first malformed query parameter
type queryParser struct {
	values url.Values
	err    *apierrors.APIError
}

func (p *queryParser) raw(key string) (string, bool) {
	if p.err != nil || !p.values.Has(key) {
		return "", false
	}
	return strings.TrimSpace(p.values.Get(key)), true
}

func (p *queryParser) fail(key, kind string) {
	p.err = apierrors.ErrValidation(key, fmt.Sprintf("must be %s", kind))
}

func (p *queryParser) text(key string) *string {
	v, ok := p.raw(key)
	if !ok {
		return nil
	}
	return &v
}

func (p *queryParser) number(key string) *float64 {
	v, ok := p.raw(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, "a number")
		return nil
	}
	return &f
}

func (p *queryParser) integer(key string) *int {
	v, ok := p.raw(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, "an integer")
		return nil
	}
	return &n
}

func (p *queryParser) integer64(key string) *int64 {
	v, ok := p.raw(key)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(key, "an integer")
		return nil
	}
	return &n
}

func (p *queryParser) boolean(key string) *bool {
	v, ok := p.raw(key)
	if !ok {
		return nil
	}
	// A bare flag (?keep_best) means true
	if v == "" {
		b := true
		return &b
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, "a boolean")
		return nil
	}
	return &b
}

// parseSearchQuery reads a SearchRequest from query parameters. Absent
// parameters stay nil and keep the configured default.
func parseSearchQuery(values url.Values) (api.SearchRequest, *apierrors.APIError) {
	p := &queryParser{values: values}
	req := api.SearchRequest{
		Symbol:           p.text("symbol"),
		MaxMovePct:       p.number("max_move_pct"),
		MaxDelta:         p.number("max_delta"),
		MinDTE:           p.integer("min_dte"),
		MaxDTE:           p.integer("max_dte"),
		MinLiquidity:     p.integer64("min_liquidity"),
		SpreadWidth:      p.number("spread_width"),
		NumResults:       p.integer("num_results"),
		SortBy:           p.text("sort_by"),
		KeepBest:         p.boolean("keep_best"),
		RelaxedLiquidity: p.boolean("relaxed_liquidity"),
		ChartTopN:        p.integer("chart_top_n"),
	}
	return req, p.err
}
