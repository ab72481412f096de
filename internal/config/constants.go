package config

import "time"

// Application constants
const (
	// Application Info
	AppName    = "Iron Condor Combo Finder"
	AppVersion = "1.0.0"
	AppBinary  = "condor-finder"

	// Market data providers
	ProviderMock    = "mock"
	ProviderFile    = "file"
	ProviderCSV     = "csv"
	ProviderTradier = "tradier"

	// Export formats
	FormatCSV    = "csv"
	FormatXLSX   = "xlsx"
	FormatJSON   = "json"
	FormatSheets = "sheets"

	// Search tuning
	DefaultRelaxFactor   = 5.0
	DefaultWorkers       = 4
	DefaultSchedule      = "@every 5m"
	DefaultSearchTimeout = 60 * time.Second
	DefaultCacheTTL      = 60 * time.Second

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// Network Timeouts
	DefaultHTTPTimeout = 15 * time.Second

	// File Paths (relative to the working directory)
	DefaultDataDir   = "data"
	DefaultExportDir = "data/exports"
	DefaultChartDir  = "data/charts"
	DefaultLogsDir   = "logs"
	DefaultLogFile   = "logs/app.log"

	// Publishing
	DefaultSubjectPrefix = "condor.results"
)

// Providers lists every supported market data provider
var Providers = []string{ProviderMock, ProviderFile, ProviderCSV, ProviderTradier}

// ExportFormats lists every supported export format
var ExportFormats = []string{FormatCSV, FormatXLSX, FormatJSON, FormatSheets}
