package marketdata

import (
	"fmt"
	"log/slog"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/config"
)

// NewSource builds the configured provider chain. Several providers are
// tried in order; the whole chain is wrapped in a TTL cache when one is set.
func NewSource(cfg config.SourceConfig, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := GreekDefaults{
		Delta: cfg.Defaults.Delta,
		Gamma: cfg.Defaults.Gamma,
		Theta: cfg.Defaults.Theta,
		Vega:  cfg.Defaults.Vega,
	}

	sources := make([]Source, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		s, err := newProvider(name, cfg, defaults, logger)
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}

	var src Source
	switch len(sources) {
	case 0:
		return nil, fmt.Errorf("%w: none configured", ErrUnknownProvider)
	case 1:
		src = sources[0]
	default:
		src = NewFallbackSource(logger, sources...)
	}

	if cfg.CacheTTL > 0 {
		src = NewCachedSource(src, cfg.CacheTTL, cfg.CacheSize)
	}

	logger.Info("market data source configured",
		slog.String("component", "marketdata"),
		slog.String("providers", src.Name()),
		slog.Duration("cache_ttl", cfg.CacheTTL),
	)
	return src, nil
}

func newProvider(name string, cfg config.SourceConfig, defaults GreekDefaults, logger *slog.Logger) (Source, error) {
	switch name {
	case config.ProviderMock:
		return NewMockSource(nil), nil
	case config.ProviderFile:
		if cfg.SnapshotPath == "" {
			return nil, fmt.Errorf("provider %q requires a snapshot path", name)
		}
		return NewFileSource(cfg.SnapshotPath, defaults, nil), nil
	case config.ProviderCSV:
		if cfg.CSVPath == "" {
			return nil, fmt.Errorf("provider %q requires a csv path", name)
		}
		return NewCSVSource(cfg.CSVPath, defaults, nil), nil
	case config.ProviderTradier:
		t := cfg.Tradier
		return NewTradierSource(TradierConfig{
			BaseURL:        t.BaseURL,
			Token:          t.Token,
			Timeout:        t.Timeout,
			RateLimitRPS:   t.RateLimitRPS,
			Burst:          t.Burst,
			MaxRetries:     t.MaxRetries,
			RetryBaseDelay: t.RetryBaseDelay,
			Defaults:       defaults,
		}, logger), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}
