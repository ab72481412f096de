package marketdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
)

// FallbackSource tries each source in order and returns the first success
type FallbackSource struct {
	sources []Source
	logger  *slog.Logger
}

// NewFallbackSource creates a fallback chain over sources
func NewFallbackSource(logger *slog.Logger, sources ...Source) *FallbackSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackSource{
		sources: sources,
		logger:  logger.With(slog.String("component", "marketdata.fallback")),
	}
}

// Name joins the provider names in fallback order
func (f *FallbackSource) Name() string {
	names := make([]string, 0, len(f.sources))
	for _, s := range f.sources {
		names = append(names, s.Name())
	}
	return strings.Join(names, ",")
}

// Spot returns the first positive price any source can provide. A source
// reporting a zero or negative price counts as a failure.
func (f *FallbackSource) Spot(ctx context.Context, symbol string) (float64, error) {
	if len(f.sources) == 0 {
		return 0, fmt.Errorf("%w: no sources configured", ErrSpotUnavailable)
	}
	var errs []error
	for _, s := range f.sources {
		spot, err := s.Spot(ctx, symbol)
		if err == nil && spot <= 0 {
			err = fmt.Errorf("%w: non-positive price %g", ErrSpotUnavailable, spot)
		}
		if err == nil {
			return spot, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		f.logger.WarnContext(ctx, "spot source failed, trying next",
			slog.String("source", s.Name()),
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return 0, fmt.Errorf("%w: %w", ErrSpotUnavailable, errors.Join(errs...))
}

// Chain returns the first chain any source can provide. A source yielding
// a chain with no spot price counts as a failure.
func (f *FallbackSource) Chain(ctx context.Context, symbol string, minDTE, maxDTE int) (*condor.Chain, error) {
	if len(f.sources) == 0 {
		return nil, fmt.Errorf("%w: no sources configured", ErrChainUnavailable)
	}
	var errs []error
	for _, s := range f.sources {
		chain, err := s.Chain(ctx, symbol, minDTE, maxDTE)
		if err == nil && (chain == nil || chain.Spot <= 0) {
			err = ErrSpotUnavailable
		}
		if err == nil {
			return chain, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.logger.WarnContext(ctx, "chain source failed, trying next",
			slog.String("source", s.Name()),
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return nil, fmt.Errorf("%w: %w", ErrChainUnavailable, errors.Join(errs...))
}
