package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
)

const (
	// DefaultTradierURL is the production market data endpoint
	DefaultTradierURL = "https://api.tradier.com/v1"

	maxBackoff        = 30 * time.Second
	chainFetchWorkers = 4
	slowRequest       = 5 * time.Second
)

// TradierConfig configures the Tradier market data client
type TradierConfig struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	RateLimitRPS   float64
	Burst          int
	MaxRetries     int
	RetryBaseDelay time.Duration
	Defaults       GreekDefaults
}

// TradierSource fetches quotes and chains from the Tradier REST API
type TradierSource struct {
	cfg        TradierConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	normalizer *Normalizer
	clock      Clock
	logger     *slog.Logger
}

// errTransport marks failures below the HTTP layer
var errTransport = errors.New("transport failure")

// statusError is an HTTP failure from the upstream API
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("tradier responded %d: %s", e.Code, e.Body)
}

// NewTradierSource creates a Tradier client. Zero config values fall back
// to conservative defaults.
func NewTradierSource(cfg TradierConfig, logger *slog.Logger) *TradierSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTradierURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TradierSource{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.Burst),
		normalizer: NewNormalizer(cfg.Defaults),
		clock:      time.Now,
		logger:     logger.With(slog.String("component", "marketdata.tradier")),
	}
}

// Name returns the provider name
func (t *TradierSource) Name() string {
	return "tradier"
}

type tradierQuote struct {
	Symbol string   `json:"symbol"`
	Last   *float64 `json:"last"`
	Bid    *float64 `json:"bid"`
	Ask    *float64 `json:"ask"`
}

type tradierQuotesResponse struct {
	Quotes struct {
		Quote json.RawMessage `json:"quote"`
	} `json:"quotes"`
}

type tradierExpirationsResponse struct {
	Expirations *struct {
		Date json.RawMessage `json:"date"`
	} `json:"expirations"`
}

type tradierGreeks struct {
	Delta *float64 `json:"delta"`
	Gamma *float64 `json:"gamma"`
	Theta *float64 `json:"theta"`
	Vega  *float64 `json:"vega"`
	MidIV *float64 `json:"mid_iv"`
}

type tradierOption struct {
	Strike       float64        `json:"strike"`
	Bid          *float64       `json:"bid"`
	Ask          *float64       `json:"ask"`
	Volume       *int64         `json:"volume"`
	OpenInterest *int64         `json:"open_interest"`
	OptionType   string         `json:"option_type"`
	Greeks       *tradierGreeks `json:"greeks"`
}

type tradierChainResponse struct {
	Options *struct {
		Option json.RawMessage `json:"option"`
	} `json:"options"`
}

// Spot returns the last trade, or the quote midpoint when no trade exists
func (t *TradierSource) Spot(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{"symbols": {tradierSymbol(symbol)}}
	var resp tradierQuotesResponse
	if err := t.get(ctx, "/markets/quotes", params, &resp); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSpotUnavailable, err)
	}

	quotes, err := decodeOneOrMany[tradierQuote](resp.Quotes.Quote)
	if err != nil {
		return 0, fmt.Errorf("%w: decode quote: %v", ErrSpotUnavailable, err)
	}
	if len(quotes) == 0 {
		return 0, fmt.Errorf("%w: no quote for %s", ErrSpotUnavailable, symbol)
	}

	q := quotes[0]
	switch {
	case q.Last != nil && *q.Last > 0:
		return *q.Last, nil
	case q.Bid != nil && q.Ask != nil && *q.Bid > 0 && *q.Ask > 0:
		return (*q.Bid + *q.Ask) / 2, nil
	}
	return 0, fmt.Errorf("%w: quote for %s has no price", ErrSpotUnavailable, symbol)
}

// Chain lists expirations in the DTE window and fetches each concurrently
func (t *TradierSource) Chain(ctx context.Context, symbol string, minDTE, maxDTE int) (*condor.Chain, error) {
	spot, err := t.Spot(ctx, symbol)
	if err != nil {
		return nil, err
	}

	dates, err := t.expirations(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChainUnavailable, err)
	}

	now := t.clock()
	var wanted []time.Time
	for _, d := range dates {
		if InWindow(DaysToExpiration(d, now), minDTE, maxDTE) {
			wanted = append(wanted, d)
		}
	}

	slices := make([]condor.ExpirationSlice, len(wanted))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(chainFetchWorkers)
	for i, expiration := range wanted {
		g.Go(func() error {
			slice, err := t.expirationSlice(gctx, symbol, expiration, now)
			if err != nil {
				return fmt.Errorf("expiration %s: %w", expiration.Format(condor.DateLayout), err)
			}
			slices[i] = slice
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChainUnavailable, err)
	}

	return &condor.Chain{Symbol: symbol, Spot: spot, FetchedAt: now, Expirations: slices}, nil
}

func (t *TradierSource) expirations(ctx context.Context, symbol string) ([]time.Time, error) {
	params := url.Values{"symbol": {tradierSymbol(symbol)}, "includeAllRoots": {"true"}}
	var resp tradierExpirationsResponse
	if err := t.get(ctx, "/markets/options/expirations", params, &resp); err != nil {
		return nil, err
	}
	if resp.Expirations == nil {
		return nil, nil
	}

	raw, err := decodeOneOrMany[string](resp.Expirations.Date)
	if err != nil {
		return nil, fmt.Errorf("decode expirations: %w", err)
	}
	dates := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		d, err := ParseExpiration(s)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func (t *TradierSource) expirationSlice(ctx context.Context, symbol string, expiration, now time.Time) (condor.ExpirationSlice, error) {
	params := url.Values{
		"symbol":     {tradierSymbol(symbol)},
		"expiration": {expiration.Format(condor.DateLayout)},
		"greeks":     {"true"},
	}
	var resp tradierChainResponse
	if err := t.get(ctx, "/markets/options/chains", params, &resp); err != nil {
		return condor.ExpirationSlice{}, err
	}

	var options []tradierOption
	if resp.Options != nil {
		var err error
		options, err = decodeOneOrMany[tradierOption](resp.Options.Option)
		if err != nil {
			return condor.ExpirationSlice{}, fmt.Errorf("decode chain: %w", err)
		}
	}

	var calls, puts []RawContract
	for _, o := range options {
		raw := RawContract{
			Strike:       o.Strike,
			Bid:          floatOr(o.Bid, 0),
			Ask:          floatOr(o.Ask, 0),
			Volume:       o.Volume,
			OpenInterest: o.OpenInterest,
		}
		if o.Greeks != nil {
			raw.Delta, raw.Gamma, raw.Theta, raw.Vega = o.Greeks.Delta, o.Greeks.Gamma, o.Greeks.Theta, o.Greeks.Vega
			raw.Volatility = o.Greeks.MidIV
		}
		if strings.EqualFold(o.OptionType, "put") {
			puts = append(puts, raw)
		} else {
			calls = append(calls, raw)
		}
	}

	return condor.ExpirationSlice{
		Expiration: expiration,
		DTE:        DaysToExpiration(expiration, now),
		Calls:      t.normalizer.Legs(calls, false),
		Puts:       t.normalizer.Legs(puts, true),
	}, nil
}

// get performs a rate-limited GET with exponential backoff. Only transport
// failures, 429 and 5xx responses are retried.
func (t *TradierSource) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := strings.TrimRight(t.cfg.BaseURL, "/") + path + "?" + params.Encode()

	var lastErr error
	backoff := t.cfg.RetryBaseDelay
	attempts := 0
	for attempts <= t.cfg.MaxRetries {
		if attempts > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			t.logger.WarnContext(ctx, "retrying market data request",
				slog.String("path", path),
				slog.Int("attempt", attempts+1),
				slog.String("error", lastErr.Error()),
			)
		}

		attempts++
		err := t.do(ctx, endpoint, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(ctx, err) {
			break
		}
	}
	return fmt.Errorf("request %s failed after %d attempts: %w", path, attempts, lastErr)
}

func (t *TradierSource) do(ctx context.Context, endpoint string, out any) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if t.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.Token)
	}

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", errTransport, err)
	}
	defer resp.Body.Close()

	if elapsed := time.Since(start); elapsed > slowRequest {
		t.logger.WarnContext(ctx, "slow market data request",
			slog.String("url", req.URL.Path),
			slog.Duration("duration", elapsed),
		)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", errTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &statusError{Code: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return errors.Is(err, errTransport)
}

// decodeOneOrMany accepts the API's habit of returning a bare object when a
// list has a single element.
func decodeOneOrMany[T any](raw json.RawMessage) ([]T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var many []T
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	var one T
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}

// tradierSymbol strips the index prefix used by other brokers ($SPX -> SPX)
func tradierSymbol(symbol string) string {
	return strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(symbol)), "$")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
