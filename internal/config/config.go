package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
)

// EnvPrefix namespaces every environment variable (CONDOR_SERVER_PORT, ...)
const EnvPrefix = "CONDOR"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Search    SearchConfig    `yaml:"search" envconfig:"SEARCH"`
	Source    SourceConfig    `yaml:"source" envconfig:"SOURCE"`
	Export    ExportConfig    `yaml:"export" envconfig:"EXPORT"`
	Chart     ChartConfig     `yaml:"chart" envconfig:"CHART"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	Publish   PublishConfig   `yaml:"publish" envconfig:"PUBLISH"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	SearchTimeout   time.Duration `yaml:"search_timeout" envconfig:"SEARCH_TIMEOUT"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// SearchConfig holds the default search parameters and engine tuning
type SearchConfig struct {
	Symbol           string   `yaml:"symbol" envconfig:"SYMBOL"`
	MaxMovePct       float64  `yaml:"max_move_pct" envconfig:"MAX_MOVE_PCT"`
	MaxDelta         float64  `yaml:"max_delta" envconfig:"MAX_DELTA"`
	MinDTE           int      `yaml:"min_dte" envconfig:"MIN_DTE"`
	MaxDTE           int      `yaml:"max_dte" envconfig:"MAX_DTE"`
	MinLiquidity     int64    `yaml:"min_liquidity" envconfig:"MIN_LIQUIDITY"`
	SpreadWidth      float64  `yaml:"spread_width" envconfig:"SPREAD_WIDTH"`
	NumResults       int      `yaml:"num_results" envconfig:"NUM_RESULTS"`
	SortBy           string   `yaml:"sort_by" envconfig:"SORT_BY"`
	KeepBest         bool     `yaml:"keep_best" envconfig:"KEEP_BEST"`
	RelaxedLiquidity bool     `yaml:"relaxed_liquidity" envconfig:"RELAXED_LIQUIDITY"`
	ChartTopN        int      `yaml:"chart_top_n" envconfig:"CHART_TOP_N"`
	RelaxFactor      float64  `yaml:"relax_factor" envconfig:"RELAX_FACTOR"`
	Workers          int      `yaml:"workers" envconfig:"WORKERS"`
	Watchlist        []string `yaml:"watchlist" envconfig:"WATCHLIST"`
	Schedule         string   `yaml:"schedule" envconfig:"SCHEDULE"`
}

// SourceConfig selects and tunes the market data providers
type SourceConfig struct {
	Providers    []string            `yaml:"providers" envconfig:"PROVIDERS"`
	CacheTTL     time.Duration       `yaml:"cache_ttl" envconfig:"CACHE_TTL"`
	CacheSize    int                 `yaml:"cache_size" envconfig:"CACHE_SIZE"`
	SnapshotPath string              `yaml:"snapshot_path" envconfig:"SNAPSHOT_PATH"`
	CSVPath      string              `yaml:"csv_path" envconfig:"CSV_PATH"`
	Tradier      TradierConfig       `yaml:"tradier" envconfig:"TRADIER"`
	Defaults     GreekDefaultsConfig `yaml:"defaults" envconfig:"DEFAULTS"`
}

// TradierConfig configures the Tradier REST client
type TradierConfig struct {
	BaseURL        string        `yaml:"base_url" envconfig:"BASE_URL"`
	Token          string        `yaml:"token" envconfig:"TOKEN"`
	Timeout        time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS"`
	Burst          int           `yaml:"burst" envconfig:"BURST"`
	MaxRetries     int           `yaml:"max_retries" envconfig:"MAX_RETRIES"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" envconfig:"RETRY_BASE_DELAY"`
}

// GreekDefaultsConfig are the Greeks substituted when a provider omits them
type GreekDefaultsConfig struct {
	Delta float64 `yaml:"delta" envconfig:"DELTA"`
	Gamma float64 `yaml:"gamma" envconfig:"GAMMA"`
	Theta float64 `yaml:"theta" envconfig:"THETA"`
	Vega  float64 `yaml:"vega" envconfig:"VEGA"`
}

// ExportConfig controls result export
type ExportConfig struct {
	Dir                   string   `yaml:"dir" envconfig:"DIR"`
	Formats               []string `yaml:"formats" envconfig:"FORMATS"`
	BOM                   bool     `yaml:"bom" envconfig:"BOM"`
	SheetsSpreadsheetID   string   `yaml:"sheets_spreadsheet_id" envconfig:"SHEETS_SPREADSHEET_ID"`
	SheetsCredentialsFile string   `yaml:"sheets_credentials_file" envconfig:"SHEETS_CREDENTIALS_FILE"`
	SheetsRange           string   `yaml:"sheets_range" envconfig:"SHEETS_RANGE"`
}

// ChartConfig controls P/L chart rendering
type ChartConfig struct {
	Dir    string  `yaml:"dir" envconfig:"DIR"`
	Width  float64 `yaml:"width" envconfig:"WIDTH"`
	Height float64 `yaml:"height" envconfig:"HEIGHT"`
	Points int     `yaml:"points" envconfig:"POINTS"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
}

// PublishConfig controls NATS publication of completed searches
type PublishConfig struct {
	NATSURL       string `yaml:"nats_url" envconfig:"NATS_URL"`
	SubjectPrefix string `yaml:"subject_prefix" envconfig:"SUBJECT_PREFIX"`
}

// Enabled reports whether a NATS server is configured
func (p PublishConfig) Enabled() bool {
	return strings.TrimSpace(p.NATSURL) != ""
}

// Load builds the configuration: defaults, then .env, then an optional
// YAML file, then CONDOR_* environment variables. Env wins over the file.
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file
// keep their current values.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// SearchDefaults converts the search section into engine parameters
func (c *Config) SearchDefaults() condor.SearchParameters {
	s := c.Search
	sortBy, err := condor.ParseSortMethod(s.SortBy)
	if err != nil {
		sortBy = condor.SortMethod(s.SortBy)
	}
	return condor.SearchParameters{
		Symbol:           s.Symbol,
		MaxMovePct:       s.MaxMovePct,
		MaxDelta:         s.MaxDelta,
		MinDTE:           s.MinDTE,
		MaxDTE:           s.MaxDTE,
		MinLiquidity:     s.MinLiquidity,
		SpreadWidth:      s.SpreadWidth,
		NumResults:       s.NumResults,
		SortBy:           sortBy,
		KeepBest:         s.KeepBest,
		RelaxedLiquidity: s.RelaxedLiquidity,
		ChartTopN:        s.ChartTopN,
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified when CORS is enabled")
	}

	if err := c.SearchDefaults().Validate(); err != nil {
		return fmt.Errorf("search defaults: %w", err)
	}

	if c.Search.RelaxFactor < 1 {
		return fmt.Errorf("search relax factor must be at least 1, got %v", c.Search.RelaxFactor)
	}

	if c.Search.Workers < 1 {
		return fmt.Errorf("search workers must be at least 1, got %d", c.Search.Workers)
	}

	if len(c.Source.Providers) == 0 {
		return fmt.Errorf("at least one market data provider must be configured")
	}
	for i, p := range c.Source.Providers {
		p = strings.ToLower(strings.TrimSpace(p))
		if !isKnownProvider(p) {
			return fmt.Errorf("unknown market data provider %q", p)
		}
		c.Source.Providers[i] = p
	}

	for i, f := range c.Export.Formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if !isKnownFormat(f) {
			return fmt.Errorf("unknown export format %q", f)
		}
		c.Export.Formats[i] = f
	}

	if c.Chart.Points < 2 {
		return fmt.Errorf("chart points must be at least 2, got %d", c.Chart.Points)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		c.Logging.Format = "json"
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFile
	}

	if c.Publish.SubjectPrefix == "" {
		c.Publish.SubjectPrefix = DefaultSubjectPrefix
	}

	return nil
}

func isKnownProvider(p string) bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

func isKnownFormat(f string) bool {
	for _, known := range ExportFormats {
		if f == known {
			return true
		}
	}
	return false
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG_FILE"); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	params := condor.DefaultSearchParameters()
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			SearchTimeout:   DefaultSearchTimeout,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: DefaultLogFile,
		},
		Search: SearchConfig{
			Symbol:       params.Symbol,
			MaxMovePct:   params.MaxMovePct,
			MaxDelta:     params.MaxDelta,
			MinDTE:       params.MinDTE,
			MaxDTE:       params.MaxDTE,
			MinLiquidity: params.MinLiquidity,
			SpreadWidth:  params.SpreadWidth,
			NumResults:   params.NumResults,
			SortBy:       params.SortBy.String(),
			RelaxFactor:  DefaultRelaxFactor,
			Workers:      DefaultWorkers,
			Schedule:     DefaultSchedule,
		},
		Source: SourceConfig{
			Providers: []string{ProviderMock},
			CacheTTL:  DefaultCacheTTL,
			CacheSize: 64,
			Tradier: TradierConfig{
				BaseURL:        "https://api.tradier.com/v1",
				Timeout:        DefaultHTTPTimeout,
				RateLimitRPS:   2,
				Burst:          2,
				MaxRetries:     3,
				RetryBaseDelay: 500 * time.Millisecond,
			},
			Defaults: GreekDefaultsConfig{Delta: 0, Gamma: 0.01, Theta: -0.01, Vega: 0.1},
		},
		Export: ExportConfig{
			Dir:         DefaultExportDir,
			Formats:     []string{FormatCSV},
			BOM:         true,
			SheetsRange: "Sheet1!A1",
		},
		Chart: ChartConfig{
			Dir:    DefaultChartDir,
			Width:  10,
			Height: 6,
			Points: 200,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
		Publish: PublishConfig{
			SubjectPrefix: DefaultSubjectPrefix,
		},
	}
}
