package condor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// TracerName is the instrumentation name used for search spans
const TracerName = "github.com/xingfanxia/iron-condor-combo-finder/internal/condor"

// ErrInvalidChain is returned when the chain snapshot cannot be searched
var ErrInvalidChain = errors.New("invalid option chain")

// Finder runs one search pass over an in-memory chain snapshot
type Finder struct {
	filter     *ChainFilter
	enumerator *CandidateEnumerator
	ranker     *Ranker
	workers    int
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewFinder creates a finder. workers bounds how many expirations are
// processed concurrently; values below 1 mean sequential.
func NewFinder(workers int, logger *slog.Logger) *Finder {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &Finder{
		filter:     NewChainFilter(),
		enumerator: NewCandidateEnumerator(),
		ranker:     NewRanker(),
		workers:    workers,
		logger:     logger.With(slog.String("component", "condor.finder")),
		tracer:     otel.Tracer(TracerName),
	}
}

type expirationOutcome struct {
	candidates []Candidate
	structures int
	processed  bool
	rejections RejectionStats
}

// Search enumerates, scores, filters and sorts iron condors for chain.
// Invalid parameters fail before any chain processing. An empty candidate
// list is a valid outcome.
func (f *Finder) Search(ctx context.Context, chain *Chain, params SearchParameters) (*Result, error) {
	start := time.Now()
	params = params.WithDefaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if chain == nil || chain.Spot <= 0 {
		return nil, fmt.Errorf("search %s: %w", params.Symbol, ErrInvalidChain)
	}

	ctx, span := f.tracer.Start(ctx, "condor.Search", trace.WithAttributes(
		attribute.String("symbol", params.Symbol),
		attribute.Float64("spot", chain.Spot),
		attribute.Int("expirations", len(chain.Expirations)),
	))
	defer span.End()

	result := &Result{
		Symbol: params.Symbol,
		Spot:   chain.Spot,
		Params: params,
		Trace:  SearchTrace{Symbol: params.Symbol},
	}
	tr := &result.Trace
	tr.enter(StateCollectingLegs)

	var slices []ExpirationSlice
	for _, exp := range chain.Expirations {
		if exp.DTE < params.MinDTE || exp.DTE > params.MaxDTE {
			continue
		}
		slices = append(slices, exp)
	}
	tr.ExpirationsSeen = len(slices)

	f.logger.InfoContext(ctx, "starting iron condor search",
		"symbol", params.Symbol,
		"spot", chain.Spot,
		"expirations", len(slices),
		"max_move_pct", params.MaxMovePct,
		"max_delta", params.MaxDelta,
		"spread_width", params.SpreadWidth,
	)

	tr.enter(StateEnumerating)
	outcomes := make([]expirationOutcome, len(slices))
	g := new(errgroup.Group)
	g.SetLimit(f.workers)
	for i, exp := range slices {
		g.Go(func() error {
			outcomes[i] = f.processExpiration(ctx, exp, chain.Spot, params)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("process expirations: %w", err)
	}

	tr.enter(StateScoring)
	var scored []Candidate
	for _, o := range outcomes {
		scored = append(scored, o.candidates...)
		tr.StructuresEnumerated += o.structures
		tr.Rejections.Add(o.rejections)
		if o.processed {
			tr.ExpirationsProcessed++
		}
	}
	tr.CandidatesScored = len(scored)

	tr.enter(StateFiltering)
	ranked, dropped := f.ranker.Rank(scored, params.MaxDelta, params.SortBy, params.NumResults)
	tr.Rejections.Delta += dropped

	tr.enter(StateSorted)
	result.Candidates = ranked
	tr.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("candidates", len(ranked)),
		attribute.Int("rejections", tr.Rejections.Total()),
	)

	f.logger.InfoContext(ctx, "iron condor search complete",
		"symbol", params.Symbol,
		"candidates", len(ranked),
		"scored", tr.CandidatesScored,
		"expirations_processed", tr.ExpirationsProcessed,
		"rejected_liquidity", tr.Rejections.Liquidity,
		"rejected_pricing", tr.Rejections.Pricing,
		"rejected_credit", tr.Rejections.Credit,
		"rejected_delta", tr.Rejections.Delta,
		"rejected_bounds", tr.Rejections.Bounds,
		"rejected_spread", tr.Rejections.Spread,
		"skipped_expirations", tr.Rejections.SkippedExpirations,
		"duration", tr.Duration,
	)

	return result, nil
}

func (f *Finder) processExpiration(ctx context.Context, exp ExpirationSlice, spot float64, params SearchParameters) expirationOutcome {
	ctx, span := f.tracer.Start(ctx, "condor.processExpiration", trace.WithAttributes(
		attribute.String("expiration", exp.Label()),
		attribute.Int("dte", exp.DTE),
	))
	defer span.End()

	var out expirationOutcome
	filtered, ok := f.filter.Filter(exp, spot, params.MinLiquidity, params.RelaxedLiquidity)
	out.rejections.Add(filtered.Rejections)
	if !ok {
		f.logger.DebugContext(ctx, "skipping expiration without enough OTM legs",
			"expiration", exp.Label(),
			"dte", exp.DTE,
			"otm_puts", len(filtered.Puts),
			"otm_calls", len(filtered.Calls),
		)
		return out
	}
	out.processed = true

	structures, rejections := f.enumerator.Enumerate(filtered, spot, params)
	out.rejections.Add(rejections)
	out.structures = len(structures)

	calc := NewMetricsCalculator(params.Symbol)
	for _, s := range structures {
		c, err := calc.Calculate(s, spot, exp.Expiration, exp.DTE, params.MaxMovePct)
		switch {
		case errors.Is(err, ErrZeroMidpoint):
			out.rejections.Spread++
			continue
		case err != nil:
			out.rejections.Bounds++
			continue
		}
		out.candidates = append(out.candidates, c)
	}

	f.logger.DebugContext(ctx, "expiration processed",
		"expiration", exp.Label(),
		"dte", exp.DTE,
		"structures", len(structures),
		"candidates", len(out.candidates),
	)
	return out
}
