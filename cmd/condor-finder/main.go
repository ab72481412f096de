// Command condor-finder searches option chains for iron condors and serves
// the search API.
//
//	condor-finder search --symbol '$SPX' --max-move-pct 2 --max-dte 7
//	condor-finder serve --port 8080
//	condor-finder version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           config.AppBinary,
		Short:         "Find and rank iron condor combinations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (default: CONDOR_CONFIG or ./config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override: debug, info, warn, error")

	root.AddCommand(newSearchCmd(opts), newServeCmd(opts), newVersionCmd())
	return root
}

// loadConfig applies the persistent flags on top of the loaded configuration
func (o *rootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configFile != "" {
		cfg, err = config.LoadFile(o.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}
