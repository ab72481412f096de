package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
	apperrors "github.com/xingfanxia/iron-condor-combo-finder/internal/errors"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/infrastructure"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/marketdata"
	ws "github.com/xingfanxia/iron-condor-combo-finder/internal/websocket"
	api "github.com/xingfanxia/iron-condor-combo-finder/pkg/contracts/api/v1"
	"github.com/xingfanxia/iron-condor-combo-finder/pkg/contracts/events"
)

// Origins of a search, reported in events and logs
const (
	OriginAPI       = "api"
	OriginCLI       = "cli"
	OriginScheduler = "scheduler"
)

// DefaultRelaxFactor multiplies max_delta for the retry of an empty search
const DefaultRelaxFactor = 5.0

// Searcher runs the engine over one chain snapshot
type Searcher interface {
	Search(ctx context.Context, chain *condor.Chain, params condor.SearchParameters) (*condor.Result, error)
}

// ChartRenderer renders payoff charts for the leading candidates
type ChartRenderer interface {
	RenderTop(ctx context.Context, symbol string, candidates []condor.Candidate, spot float64, n int) ([]string, error)
}

// ResultExporter writes a result in several formats
type ResultExporter interface {
	ExportAll(ctx context.Context, result *condor.Result, formats []string) ([]string, error)
}

// ResultPublisher forwards a finished result to a message bus
type ResultPublisher interface {
	Publish(ctx context.Context, result *condor.Result) error
}

// SearchOutcome is a finished search with its side products
type SearchOutcome struct {
	Result      *condor.Result
	Summary     api.Summary
	ChartPaths  []string
	ExportPaths []string
}

// SearchService orchestrates fetch, search, rendering and fan-out
type SearchService struct {
	source      marketdata.Source
	finder      Searcher
	charts      ChartRenderer
	exporter    ResultExporter
	formats     []string
	broadcaster ws.Broadcaster
	publisher   ResultPublisher
	metrics     *infrastructure.SearchMetrics
	relaxFactor float64
	timeout     time.Duration
	logger      *slog.Logger
}

// SearchOption configures a SearchService
type SearchOption func(*SearchService)

// WithCharts renders charts when a request asks for chart_top_n > 0
func WithCharts(r ChartRenderer) SearchOption {
	return func(s *SearchService) { s.charts = r }
}

// WithExporter writes every result in formats
func WithExporter(e ResultExporter, formats []string) SearchOption {
	return func(s *SearchService) {
		s.exporter = e
		s.formats = formats
	}
}

// WithBroadcaster pushes search events to websocket clients
func WithBroadcaster(b ws.Broadcaster) SearchOption {
	return func(s *SearchService) { s.broadcaster = b }
}

// WithPublisher publishes non-empty results
func WithPublisher(p ResultPublisher) SearchOption {
	return func(s *SearchService) { s.publisher = p }
}

// WithSearchMetrics records search counters and durations
func WithSearchMetrics(m *infrastructure.SearchMetrics) SearchOption {
	return func(s *SearchService) { s.metrics = m }
}

// WithRelaxFactor sets the max_delta multiplier of the relaxed retry.
// Factors of 1 or less disable the retry.
func WithRelaxFactor(f float64) SearchOption {
	return func(s *SearchService) { s.relaxFactor = f }
}

// WithTimeout bounds the chain fetch and search
func WithTimeout(d time.Duration) SearchOption {
	return func(s *SearchService) { s.timeout = d }
}

// NewSearchService creates a search service over source and finder
func NewSearchService(source marketdata.Source, finder Searcher, logger *slog.Logger, opts ...SearchOption) *SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SearchService{
		source:      source,
		finder:      finder,
		relaxFactor: DefaultRelaxFactor,
		logger:      logger.With(slog.String("service", "search")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs one search for params. An empty result is not an error.
func (s *SearchService) Search(ctx context.Context, params condor.SearchParameters, origin string) (*SearchOutcome, error) {
	start := time.Now()
	ctx, traceID := infrastructure.EnsureTraceID(ctx)
	params = params.WithDefaults()

	if err := params.Validate(); err != nil {
		appErr := validationError(err)
		s.fail(ctx, params.Symbol, origin, appErr, start)
		return nil, appErr
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.DebugContext(ctx, "search started",
		slog.String("symbol", params.Symbol),
		slog.String("origin", origin),
		slog.String("provider", s.source.Name()),
		slog.Int("min_dte", params.MinDTE),
		slog.Int("max_dte", params.MaxDTE),
		slog.Float64("max_delta", params.MaxDelta))

	chain, err := s.source.Chain(ctx, params.Symbol, params.MinDTE, params.MaxDTE)
	if err != nil {
		appErr := apperrors.NewUpstreamError(fmt.Sprintf("fetch option chain for %s", params.Symbol), err).
			WithContext("provider", s.source.Name())
		s.fail(ctx, params.Symbol, origin, appErr, start)
		return nil, appErr
	}

	result, err := s.finder.Search(ctx, chain, params)
	if err != nil {
		appErr := engineError(err)
		s.fail(ctx, params.Symbol, origin, appErr, start)
		return nil, appErr
	}

	if result.IsEmpty() {
		result = s.relax(ctx, chain, params, result)
	}
	result.Trace.TraceID = traceID

	outcome := &SearchOutcome{
		Result:  result,
		Summary: Summarize(result),
	}
	s.render(ctx, params, outcome)
	s.export(ctx, outcome)

	elapsed := time.Since(start)
	s.metrics.RecordSearch(ctx, params.Symbol, result, elapsed, nil)
	s.completed(ctx, origin, result, elapsed)

	s.logger.InfoContext(ctx, "search completed",
		slog.String("symbol", params.Symbol),
		slog.String("origin", origin),
		slog.Float64("spot", result.Spot),
		slog.Int("candidates", len(result.Candidates)),
		slog.Bool("relaxed", result.Relaxed),
		slog.Int("rejections", result.Trace.Rejections.Total()),
		slog.Duration("duration", elapsed))

	return outcome, nil
}

// relax retries an empty search once with max_delta scaled by the relax
// factor. The strict result is kept when the retry finds nothing.
func (s *SearchService) relax(ctx context.Context, chain *condor.Chain, params condor.SearchParameters, strict *condor.Result) *condor.Result {
	if s.relaxFactor <= 1 {
		return strict
	}
	relaxed := params
	relaxed.MaxDelta = params.MaxDelta * s.relaxFactor

	s.logger.InfoContext(ctx, "no candidates, retrying with relaxed delta",
		slog.String("symbol", params.Symbol),
		slog.Float64("max_delta", params.MaxDelta),
		slog.Float64("relaxed_max_delta", relaxed.MaxDelta))

	result, err := s.finder.Search(ctx, chain, relaxed)
	if err != nil {
		s.logger.WarnContext(ctx, "relaxed search failed",
			slog.String("symbol", params.Symbol),
			slog.String("error", err.Error()))
		return strict
	}
	if result.IsEmpty() {
		return strict
	}
	result.Relaxed = true
	return result
}

func (s *SearchService) render(ctx context.Context, params condor.SearchParameters, outcome *SearchOutcome) {
	result := outcome.Result
	if s.charts == nil || params.ChartTopN <= 0 || result.IsEmpty() {
		return
	}
	paths, err := s.charts.RenderTop(ctx, result.Symbol, result.Candidates, result.Spot, params.ChartTopN)
	if err != nil {
		s.logger.WarnContext(ctx, "chart rendering failed",
			slog.String("symbol", result.Symbol),
			slog.Int("rendered", len(paths)),
			slog.String("error", err.Error()))
	}
	outcome.ChartPaths = paths
}

func (s *SearchService) export(ctx context.Context, outcome *SearchOutcome) {
	if s.exporter == nil || len(s.formats) == 0 {
		return
	}
	paths, err := s.exporter.ExportAll(ctx, outcome.Result, s.formats)
	if err != nil {
		s.logger.WarnContext(ctx, "export failed",
			slog.String("symbol", outcome.Result.Symbol),
			slog.Any("formats", s.formats),
			slog.String("error", err.Error()))
	}
	outcome.ExportPaths = paths
}

func (s *SearchService) completed(ctx context.Context, origin string, result *condor.Result, elapsed time.Duration) {
	if s.broadcaster != nil {
		payload := events.SearchCompleted{
			Symbol:     result.Symbol,
			Spot:       result.Spot,
			Count:      len(result.Candidates),
			Relaxed:    result.Relaxed,
			Source:     origin,
			DurationMS: float64(elapsed.Microseconds()) / 1000,
			Top:        topCandidate(result),
		}
		s.broadcaster.BroadcastEvent(string(events.MessageTypeSearchCompleted), payload, result.Trace.TraceID)
	}

	if s.publisher != nil && !result.IsEmpty() {
		if err := s.publisher.Publish(ctx, result); err != nil {
			s.logger.WarnContext(ctx, "result publication failed",
				slog.String("symbol", result.Symbol),
				slog.String("error", err.Error()))
		}
	}
}

func (s *SearchService) fail(ctx context.Context, symbol, origin string, appErr *apperrors.AppError, start time.Time) {
	s.metrics.RecordSearch(ctx, symbol, nil, time.Since(start), appErr)

	level := slog.LevelError
	if appErr.Type == apperrors.ErrorTypeValidation {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "search failed",
		slog.String("symbol", symbol),
		slog.String("origin", origin),
		slog.String("type", string(appErr.Type)),
		slog.String("error", appErr.Error()))

	if s.broadcaster != nil {
		s.broadcaster.BroadcastEvent(string(events.MessageTypeSearchFailed), events.SearchFailed{
			Symbol: symbol,
			Source: origin,
			Code:   string(appErr.Type),
			Error:  appErr.Message,
		}, infrastructure.GetTraceID(ctx))
	}
}

func validationError(err error) *apperrors.AppError {
	appErr := apperrors.NewValidationError("invalid search parameters", err)
	var verrs condor.ValidationErrors
	if errors.As(err, &verrs) {
		appErr.WithContext("fields", verrs)
	}
	return appErr
}

func engineError(err error) *apperrors.AppError {
	var verrs condor.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return validationError(err)
	case errors.Is(err, condor.ErrInvalidChain):
		return apperrors.NewUpstreamError("market data returned an unusable chain", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperrors.NewUpstreamError("search timed out", err)
	default:
		return apperrors.NewInternalError("search failed", err)
	}
}

func topCandidate(result *condor.Result) *events.TopCandidate {
	if result.IsEmpty() {
		return nil
	}
	c := result.Candidates[0]
	top := &events.TopCandidate{
		Expiration:          c.ExpirationLabel(),
		LongPutStrike:       c.LongPutStrike,
		ShortPutStrike:      c.ShortPutStrike,
		ShortCallStrike:     c.ShortCallStrike,
		LongCallStrike:      c.LongCallStrike,
		NetCredit:           c.NetCredit,
		ProbabilityOfProfit: c.ProbabilityOfProfit,
	}
	if c.HasFiniteRiskReward() {
		rr := c.RiskReward
		top.RiskReward = &rr
	}
	return top
}
