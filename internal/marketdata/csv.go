package marketdata

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/validation"
)

// OptionalFloat is a CSV cell that may be blank
type OptionalFloat struct {
	Value *float64
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller
func (o *OptionalFloat) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		o.Value = nil
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// OptionalInt is a CSV cell that may be blank
type OptionalInt struct {
	Value *int64
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller
func (o *OptionalInt) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		o.Value = nil
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		o.Value = nil
		return nil
	}
	n := int64(v)
	o.Value = &n
	return nil
}

// ChainRow is one contract line of a CSV chain export
type ChainRow struct {
	UnderlyingPrice   float64       `csv:"underlying_price"`
	Expiration        string        `csv:"expiration"`
	OptionType        string        `csv:"option_type"`
	Strike            float64       `csv:"strike"`
	Bid               float64       `csv:"bid"`
	Ask               float64       `csv:"ask"`
	Delta             OptionalFloat `csv:"delta"`
	Gamma             OptionalFloat `csv:"gamma"`
	Theta             OptionalFloat `csv:"theta"`
	Vega              OptionalFloat `csv:"vega"`
	Volume            OptionalInt   `csv:"volume"`
	OpenInterest      OptionalInt   `csv:"open_interest"`
	ImpliedVolatility OptionalFloat `csv:"implied_volatility"`
}

func (r ChainRow) isPut() (bool, error) {
	switch strings.ToLower(strings.TrimSpace(r.OptionType)) {
	case "put", "p":
		return true, nil
	case "call", "c":
		return false, nil
	}
	return false, fmt.Errorf("unknown option type %q at strike %v", r.OptionType, r.Strike)
}

func (r ChainRow) raw() RawContract {
	return RawContract{
		Strike:       r.Strike,
		Bid:          r.Bid,
		Ask:          r.Ask,
		Delta:        r.Delta.Value,
		Gamma:        r.Gamma.Value,
		Theta:        r.Theta.Value,
		Vega:         r.Vega.Value,
		Volume:       r.Volume.Value,
		OpenInterest: r.OpenInterest.Value,
		Volatility:   r.ImpliedVolatility.Value,
	}
}

// CSVSource reads a chain from a CSV file with one contract per row
type CSVSource struct {
	path       string
	normalizer *Normalizer
	validator  *validation.FileValidator
	clock      Clock
}

// NewCSVSource creates a CSV-backed source. A nil clock uses time.Now.
func NewCSVSource(path string, defaults GreekDefaults, clock Clock) *CSVSource {
	if clock == nil {
		clock = time.Now
	}
	return &CSVSource{
		path:       path,
		normalizer: NewNormalizer(defaults),
		validator:  validation.NewFileValidator(nil),
		clock:      clock,
	}
}

// Name returns the provider name
func (c *CSVSource) Name() string {
	return "csv"
}

// Spot returns the underlying price of the first row
func (c *CSVSource) Spot(ctx context.Context, _ string) (float64, error) {
	rows, err := c.load(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSpotUnavailable, err)
	}
	if len(rows) == 0 || rows[0].UnderlyingPrice <= 0 {
		return 0, fmt.Errorf("%w: %s has no underlying price", ErrSpotUnavailable, c.path)
	}
	return rows[0].UnderlyingPrice, nil
}

// Chain groups rows by expiration and keeps those inside the DTE window
func (c *CSVSource) Chain(ctx context.Context, symbol string, minDTE, maxDTE int) (*condor.Chain, error) {
	rows, err := c.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrChainUnavailable, err)
	}

	now := c.clock()
	chain, err := RowsToChain(rows, c.normalizer, now, minDTE, maxDTE)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChainUnavailable, err)
	}
	chain.Symbol = symbol
	return chain, nil
}

func (c *CSVSource) load(ctx context.Context) ([]ChainRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.validator.ValidateInput(c.path, ".csv"); err != nil {
		return nil, err
	}
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("open chain csv: %w", err)
	}
	defer f.Close()

	var rows []ChainRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("decode chain csv %s: %w", c.path, err)
	}
	return rows, nil
}

// RowsToChain groups CSV rows into normalized expiration slices
func RowsToChain(rows []ChainRow, n *Normalizer, now time.Time, minDTE, maxDTE int) (*condor.Chain, error) {
	type side struct {
		expiration  time.Time
		calls, puts []RawContract
	}
	byDate := make(map[string]*side)
	chain := &condor.Chain{FetchedAt: now}

	for _, row := range rows {
		if chain.Spot == 0 && row.UnderlyingPrice > 0 {
			chain.Spot = row.UnderlyingPrice
		}
		isPut, err := row.isPut()
		if err != nil {
			return nil, err
		}
		s, ok := byDate[row.Expiration]
		if !ok {
			expiration, err := ParseExpiration(row.Expiration)
			if err != nil {
				return nil, err
			}
			s = &side{expiration: expiration}
			byDate[row.Expiration] = s
		}
		if isPut {
			s.puts = append(s.puts, row.raw())
		} else {
			s.calls = append(s.calls, row.raw())
		}
	}

	for _, s := range byDate {
		dte := DaysToExpiration(s.expiration, now)
		if !InWindow(dte, minDTE, maxDTE) {
			continue
		}
		chain.Expirations = append(chain.Expirations, condor.ExpirationSlice{
			Expiration: s.expiration,
			DTE:        dte,
			Calls:      n.Legs(s.calls, false),
			Puts:       n.Legs(s.puts, true),
		})
	}
	sort.Slice(chain.Expirations, func(i, j int) bool {
		return chain.Expirations[i].Expiration.Before(chain.Expirations[j].Expiration)
	})
	return chain, nil
}
