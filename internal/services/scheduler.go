package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/robfig/cron"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
)

// SearchRunner runs one search. *SearchService implements it.
type SearchRunner interface {
	Search(ctx context.Context, params condor.SearchParameters, origin string) (*SearchOutcome, error)
}

// Scheduler searches every watchlist symbol on a cron schedule. A symbol
// whose previous run has not finished is skipped for that tick.
type Scheduler struct {
	runner    SearchRunner
	defaults  condor.SearchParameters
	watchlist []string
	spec      string
	cron      *cron.Cron
	logger    *slog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewScheduler validates spec and the watchlist. Symbols are upper-cased
// and duplicates dropped.
func NewScheduler(runner SearchRunner, defaults condor.SearchParameters, watchlist []string, spec string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	symbols := normalizeWatchlist(watchlist)
	if len(symbols) == 0 {
		return nil, ErrEmptyWatchlist
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		runner:    runner,
		defaults:  defaults,
		watchlist: symbols,
		spec:      spec,
		cron:      cron.New(),
		logger:    logger.With(slog.String("service", "scheduler")),
		inFlight:  make(map[string]bool),
		ctx:       ctx,
		cancel:    cancel,
	}
	if err := s.cron.AddFunc(spec, s.tick); err != nil {
		cancel()
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

// Watchlist returns the normalized symbols
func (s *Scheduler) Watchlist() []string {
	return append([]string(nil), s.watchlist...)
}

// Start begins firing on the schedule
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started",
		slog.String("schedule", s.spec),
		slog.Any("watchlist", s.watchlist))
	s.cron.Start()
}

// Stop halts the schedule, cancels running searches and waits for them
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) tick() {
	s.wg.Add(1)
	defer s.wg.Done()
	if err := s.RunOnce(s.ctx); err != nil {
		s.logger.Warn("scheduled run had failures", slog.String("error", err.Error()))
	}
}

// RunOnce searches every symbol in order and joins the failures
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, symbol := range s.watchlist {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if err := s.runSymbol(ctx, symbol); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) runSymbol(ctx context.Context, symbol string) error {
	if !s.acquire(symbol) {
		s.logger.DebugContext(ctx, "previous run still in flight, skipping",
			slog.String("symbol", symbol))
		return nil
	}
	defer s.release(symbol)

	params := s.defaults
	params.Symbol = symbol
	params.ChartTopN = 0

	outcome, err := s.runner.Search(ctx, params, OriginScheduler)
	if err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "scheduled search finished",
		slog.String("symbol", symbol),
		slog.Int("candidates", len(outcome.Result.Candidates)))
	return nil
}

func (s *Scheduler) acquire(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[symbol] {
		return false
	}
	s.inFlight[symbol] = true
	return true
}

func (s *Scheduler) release(symbol string) {
	s.mu.Lock()
	delete(s.inFlight, symbol)
	s.mu.Unlock()
}

func normalizeWatchlist(watchlist []string) []string {
	seen := make(map[string]bool, len(watchlist))
	out := make([]string, 0, len(watchlist))
	for _, sym := range watchlist {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}
