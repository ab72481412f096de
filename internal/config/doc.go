// Package config provides centralized configuration management for the
// condor finder. It loads settings from several sources, validates them and
// exposes a typed Config to the rest of the application.
//
// # Configuration Sources
//
// Configuration is layered in this order, later sources winning:
//
//	1. Default() values
//	2. A .env file in the working directory (loaded into the process env)
//	3. An optional YAML file (config.yaml, configs/config.yaml or CONDOR_CONFIG_FILE)
//	4. CONDOR_* environment variables
//
// # Environment Variables
//
// Variables follow the section layout of Config:
//
//	CONDOR_SERVER_PORT=8080
//	CONDOR_SEARCH_SYMBOL=SPY
//	CONDOR_SEARCH_MAX_DELTA=0.05
//	CONDOR_SOURCE_PROVIDERS=tradier,mock
//	CONDOR_SOURCE_TRADIER_TOKEN=...
//	CONDOR_EXPORT_FORMATS=csv,xlsx
//	CONDOR_PUBLISH_NATS_URL=nats://localhost:4222
//
// List values are comma separated.
//
// # Search Defaults
//
// The search section mirrors condor.SearchParameters. SearchDefaults converts
// it, and Load rejects a configuration whose defaults would fail
// SearchParameters.Validate.
//
// # Path Management
//
// Output directories are resolved against the working directory:
//
//	paths, _ := cfg.GetPaths()
//	_ = paths.EnsureDirectories()
//	csvPath := paths.GetExportPath("ic_opportunities_SPY_20250620_093000.csv")
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
