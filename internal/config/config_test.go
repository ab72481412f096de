package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoadFile tests loading with various env and file combinations
func TestLoadFile(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults with no env vars",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "$SPX", cfg.Search.Symbol)
				assert.Equal(t, 2.0, cfg.Search.MaxMovePct)
				assert.Equal(t, 0.01, cfg.Search.MaxDelta)
				assert.Equal(t, 0, cfg.Search.MinDTE)
				assert.Equal(t, 7, cfg.Search.MaxDTE)
				assert.Equal(t, int64(10), cfg.Search.MinLiquidity)
				assert.Equal(t, 5.0, cfg.Search.SpreadWidth)
				assert.Equal(t, 10, cfg.Search.NumResults)
				assert.Equal(t, 5.0, cfg.Search.RelaxFactor)
				assert.Equal(t, 60*time.Second, cfg.Source.CacheTTL)
				assert.Equal(t, []string{"mock"}, cfg.Source.Providers)
				assert.Equal(t, "condor.results", cfg.Publish.SubjectPrefix)
				assert.False(t, cfg.Publish.Enabled())
			},
		},
		{
			name: "custom environment variables",
			env: map[string]string{
				"CONDOR_SERVER_PORT":          "9090",
				"CONDOR_SERVER_READ_TIMEOUT":  "30s",
				"CONDOR_SEARCH_SYMBOL":        "SPY",
				"CONDOR_SEARCH_MAX_DELTA":     "0.05",
				"CONDOR_SEARCH_WATCHLIST":     "SPY,QQQ",
				"CONDOR_SOURCE_PROVIDERS":     "Tradier, mock",
				"CONDOR_SOURCE_TRADIER_TOKEN": "secret",
				"CONDOR_EXPORT_FORMATS":       "csv,XLSX",
				"CONDOR_PUBLISH_NATS_URL":     "nats://localhost:4222",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "SPY", cfg.Search.Symbol)
				assert.Equal(t, 0.05, cfg.Search.MaxDelta)
				assert.Equal(t, []string{"SPY", "QQQ"}, cfg.Search.Watchlist)
				assert.Equal(t, []string{"tradier", "mock"}, cfg.Source.Providers)
				assert.Equal(t, "secret", cfg.Source.Tradier.Token)
				assert.Equal(t, []string{"csv", "xlsx"}, cfg.Export.Formats)
				assert.True(t, cfg.Publish.Enabled())
			},
		},
		{
			name: "file overrides defaults and env overrides file",
			env:  map[string]string{"CONDOR_SERVER_PORT": "7070"},
			file: `
server:
  port: 6060
  read_timeout: 20s
search:
  symbol: QQQ
  max_dte: 14
  sort_by: pop
logging:
  level: error
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, 20*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "QQQ", cfg.Search.Symbol)
				assert.Equal(t, 14, cfg.Search.MaxDTE)
				assert.Equal(t, "error", cfg.Logging.Level)
				assert.Equal(t, condor.SortByProbability, cfg.SearchDefaults().SortBy)
				// untouched keys keep their defaults
				assert.Equal(t, 2.0, cfg.Search.MaxMovePct)
			},
		},
		{
			name:    "invalid port number",
			env:     map[string]string{"CONDOR_SERVER_PORT": "99999"},
			wantErr: true,
		},
		{
			name:    "negative timeout",
			env:     map[string]string{"CONDOR_SERVER_READ_TIMEOUT": "-5s"},
			wantErr: true,
		},
		{
			name:    "inverted dte window",
			env:     map[string]string{"CONDOR_SEARCH_MIN_DTE": "10", "CONDOR_SEARCH_MAX_DTE": "5"},
			wantErr: true,
		},
		{
			name:    "unknown provider",
			env:     map[string]string{"CONDOR_SOURCE_PROVIDERS": "bloomberg"},
			wantErr: true,
		},
		{
			name:    "unknown export format",
			env:     map[string]string{"CONDOR_EXPORT_FORMATS": "pdf"},
			wantErr: true,
		},
		{
			name:    "relax factor below one",
			env:     map[string]string{"CONDOR_SEARCH_RELAX_FACTOR": "0.5"},
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "server: [unclosed",
			wantErr: true,
		},
		{
			name:    "unparsable env value",
			env:     map[string]string{"CONDOR_SEARCH_WORKERS": "many"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			}

			cfg, err := LoadFile(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			if tt.validateCfg != nil {
				tt.validateCfg(t, cfg)
			}
		})
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
		check   func(*testing.T, *Config)
	}{
		{name: "defaults are valid"},
		{
			name:    "cors without origins",
			modify:  func(c *Config) { c.Security.AllowedOrigins = nil },
			wantErr: "allowed origin",
		},
		{
			name:   "cors disabled without origins",
			modify: func(c *Config) { c.Security.EnableCORS = false; c.Security.AllowedOrigins = nil },
		},
		{
			name:    "zero workers",
			modify:  func(c *Config) { c.Search.Workers = 0 },
			wantErr: "workers",
		},
		{
			name:    "no providers",
			modify:  func(c *Config) { c.Source.Providers = nil },
			wantErr: "provider",
		},
		{
			name:    "single chart point",
			modify:  func(c *Config) { c.Chart.Points = 1 },
			wantErr: "chart points",
		},
		{
			name:    "invalid search defaults",
			modify:  func(c *Config) { c.Search.SpreadWidth = 0 },
			wantErr: "spread_width",
		},
		{
			name: "logging normalized",
			modify: func(c *Config) {
				c.Logging.Format = "xml"
				c.Logging.Output = "syslog"
				c.Logging.FilePath = ""
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "json", c.Logging.Format)
				assert.Equal(t, "console", c.Logging.Output)
				assert.Equal(t, DefaultLogFile, c.Logging.FilePath)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if tt.modify != nil {
				tt.modify(cfg)
			}
			err := cfg.validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestSearchDefaults(t *testing.T) {
	cfg := Default()
	cfg.Search.SortBy = "ev"
	cfg.Search.KeepBest = true
	cfg.Search.ChartTopN = 3

	p := cfg.SearchDefaults()
	assert.Equal(t, condor.SortByExpectedProfit, p.SortBy)
	assert.True(t, p.KeepBest)
	assert.Equal(t, 3, p.ChartTopN)
	assert.NoError(t, p.Validate())

	cfg.Search.SortBy = "volume"
	assert.Error(t, cfg.SearchDefaults().Validate())
}

func TestGetConfigFilePath(t *testing.T) {
	t.Setenv("CONDOR_CONFIG_FILE", "/etc/condor/config.yaml")
	assert.Equal(t, "/etc/condor/config.yaml", getConfigFilePath())
}
