package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/validation"
)

// Snapshot is a saved option chain in the broker layout, with expirations
// keyed "YYYY-MM-DD:dte" and strikes keyed by their decimal text.
type Snapshot struct {
	Symbol          string                              `json:"symbol"`
	UnderlyingPrice float64                             `json:"underlyingPrice"`
	CallExpDateMap  map[string]map[string][]RawContract `json:"callExpDateMap"`
	PutExpDateMap   map[string]map[string][]RawContract `json:"putExpDateMap"`
}

// FileSource replays a chain snapshot from disk
type FileSource struct {
	path       string
	normalizer *Normalizer
	validator  *validation.FileValidator
	clock      Clock
}

// NewFileSource creates a snapshot-backed source. A nil clock uses time.Now.
func NewFileSource(path string, defaults GreekDefaults, clock Clock) *FileSource {
	if clock == nil {
		clock = time.Now
	}
	return &FileSource{
		path:       path,
		normalizer: NewNormalizer(defaults),
		validator:  validation.NewFileValidator(nil),
		clock:      clock,
	}
}

// Name returns the provider name
func (f *FileSource) Name() string {
	return "file"
}

// Spot returns the underlying price recorded in the snapshot
func (f *FileSource) Spot(ctx context.Context, _ string) (float64, error) {
	snap, err := f.load(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSpotUnavailable, err)
	}
	if snap.UnderlyingPrice <= 0 {
		return 0, fmt.Errorf("%w: snapshot %s has no underlying price", ErrSpotUnavailable, f.path)
	}
	return snap.UnderlyingPrice, nil
}

// Chain decodes the snapshot and keeps expirations inside the DTE window
func (f *FileSource) Chain(ctx context.Context, symbol string, minDTE, maxDTE int) (*condor.Chain, error) {
	snap, err := f.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrChainUnavailable, err)
	}

	chain, err := snap.ToChain(f.normalizer, f.clock(), minDTE, maxDTE)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChainUnavailable, err)
	}
	if symbol != "" {
		chain.Symbol = symbol
	}
	return chain, nil
}

func (f *FileSource) load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.validator.ValidateInput(f.path, ".json"); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", f.path, err)
	}
	return &snap, nil
}

// ToChain converts the snapshot into a normalized chain. A DTE recorded in
// the expiration key wins over one computed from now.
func (s *Snapshot) ToChain(n *Normalizer, now time.Time, minDTE, maxDTE int) (*condor.Chain, error) {
	type side struct{ calls, puts []RawContract }
	byKey := make(map[string]*side)
	get := func(key string) *side {
		if byKey[key] == nil {
			byKey[key] = &side{}
		}
		return byKey[key]
	}
	for key, strikes := range s.CallExpDateMap {
		raws, err := flattenStrikes(strikes)
		if err != nil {
			return nil, fmt.Errorf("calls %s: %w", key, err)
		}
		get(key).calls = raws
	}
	for key, strikes := range s.PutExpDateMap {
		raws, err := flattenStrikes(strikes)
		if err != nil {
			return nil, fmt.Errorf("puts %s: %w", key, err)
		}
		get(key).puts = raws
	}

	chain := &condor.Chain{Symbol: s.Symbol, Spot: s.UnderlyingPrice, FetchedAt: now}
	for key, legs := range byKey {
		expiration, dte, err := ParseExpirationKey(key, now)
		if err != nil {
			return nil, err
		}
		if !InWindow(dte, minDTE, maxDTE) {
			continue
		}
		chain.Expirations = append(chain.Expirations, condor.ExpirationSlice{
			Expiration: expiration,
			DTE:        dte,
			Calls:      n.Legs(legs.calls, false),
			Puts:       n.Legs(legs.puts, true),
		})
	}
	sort.Slice(chain.Expirations, func(i, j int) bool {
		return chain.Expirations[i].Expiration.Before(chain.Expirations[j].Expiration)
	})
	return chain, nil
}

// ParseExpirationKey splits a "YYYY-MM-DD:dte" key. The dte part is
// optional; when absent it is computed against now.
func ParseExpirationKey(key string, now time.Time) (time.Time, int, error) {
	datePart, dtePart, _ := strings.Cut(key, ":")
	expiration, err := ParseExpiration(datePart)
	if err != nil {
		return time.Time{}, 0, err
	}
	if dtePart == "" {
		return expiration, DaysToExpiration(expiration, now), nil
	}
	dte, err := strconv.Atoi(dtePart)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("parse dte in %q: %w", key, err)
	}
	return expiration, dte, nil
}

func flattenStrikes(strikes map[string][]RawContract) ([]RawContract, error) {
	out := make([]RawContract, 0, len(strikes))
	for key, contracts := range strikes {
		if len(contracts) == 0 {
			continue
		}
		raw := contracts[0]
		if raw.Strike == 0 {
			strike, err := strconv.ParseFloat(key, 64)
			if err != nil {
				return nil, fmt.Errorf("parse strike %q: %w", key, err)
			}
			raw.Strike = strike
		}
		out = append(out, raw)
	}
	return out, nil
}
