package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
)

var (
	// ErrSpotUnavailable is returned when no underlying price can be obtained
	ErrSpotUnavailable = errors.New("spot price unavailable")
	// ErrChainUnavailable is returned when no option chain can be obtained
	ErrChainUnavailable = errors.New("option chain unavailable")
	// ErrUnknownProvider is returned by NewSource for an unsupported provider name
	ErrUnknownProvider = errors.New("unknown market data provider")
)

// Source provides underlying prices and normalized option chains
type Source interface {
	// Name returns the provider name (e.g. "mock", "tradier")
	Name() string

	// Spot returns the current price of the underlying
	Spot(ctx context.Context, symbol string) (float64, error)

	// Chain returns every expiration with minDTE <= dte <= maxDTE.
	// The returned chain carries the spot price and normalized legs.
	Chain(ctx context.Context, symbol string, minDTE, maxDTE int) (*condor.Chain, error)
}

// Clock returns the current time. Sources take one so DTE is testable.
type Clock func() time.Time

// DaysToExpiration returns the number of calendar days from now until
// expiration, comparing dates only.
func DaysToExpiration(expiration, now time.Time) int {
	exp := time.Date(expiration.Year(), expiration.Month(), expiration.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(exp.Sub(today).Hours() / 24)
}

// InWindow reports whether dte lies within [minDTE, maxDTE]
func InWindow(dte, minDTE, maxDTE int) bool {
	return dte >= minDTE && dte <= maxDTE
}

// ParseExpiration parses a YYYY-MM-DD expiration date
func ParseExpiration(s string) (time.Time, error) {
	t, err := time.Parse(condor.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse expiration %q: %w", s, err)
	}
	return t, nil
}
