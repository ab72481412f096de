package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/app"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/infrastructure"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/services"
	api "github.com/xingfanxia/iron-condor-combo-finder/pkg/contracts/api/v1"
)

type searchFlags struct {
	symbol           string
	maxMovePct       float64
	maxDelta         float64
	minDTE           int
	maxDTE           int
	minLiquidity     int64
	spreadWidth      float64
	numResults       int
	sortBy           string
	keepBest         bool
	relaxedLiquidity bool
	charts           int
	formats          []string
	verbose          bool
	jsonOut          bool
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	f := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run one search and print the ranked candidates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("format") {
				cfg.Export.Formats = f.formats
			}
			cfg.Search.Watchlist = nil

			logger, err := infrastructure.NewLogger(cfg.Logging, cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}

			a, err := app.New(cfg, logger, app.Options{
				OTel: &infrastructure.OTelConfig{
					ServiceName:    infrastructure.ServiceName,
					TraceExporter:  "none",
					MetricExporter: "none",
				},
			})
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			params := f.request(cmd.Flags()).Apply(cfg.SearchDefaults())
			outcome, err := a.SearchService.Search(ctx, params, services.OriginCLI)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if f.jsonOut {
				return writeJSON(out, outcome)
			}
			writeReport(out, outcome, f.verbose)
			return nil
		},
	}

	f.register(cmd.Flags())
	return cmd
}

func (f *searchFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.symbol, "symbol", "", "underlying symbol, e.g. $SPX or SPY")
	fs.Float64Var(&f.maxMovePct, "max-move-pct", 0, "half-width of the target price band in percent")
	fs.Float64Var(&f.maxDelta, "max-delta", 0, "largest acceptable absolute position delta")
	fs.IntVar(&f.minDTE, "min-dte", 0, "minimum days to expiration")
	fs.IntVar(&f.maxDTE, "max-dte", 0, "maximum days to expiration")
	fs.Int64Var(&f.minLiquidity, "min-liquidity", 0, "minimum volume plus open interest per leg")
	fs.Float64Var(&f.spreadWidth, "spread-width", 0, "maximum wing width in points")
	fs.IntVar(&f.numResults, "num-results", 0, "number of candidates to return")
	fs.StringVar(&f.sortBy, "sort-by", "", "risk_reward, expected_profit, probability or score")
	fs.BoolVar(&f.keepBest, "keep-best", false, "keep the best structure per expiration even if it fails filters")
	fs.BoolVar(&f.relaxedLiquidity, "relaxed-liquidity", false, "halve the liquidity threshold")
	fs.IntVar(&f.charts, "charts", 0, "render payoff charts for the top N candidates")
	fs.StringSliceVar(&f.formats, "format", nil, "export formats: csv, xlsx, json, sheets")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "print a detailed block per candidate")
	fs.BoolVar(&f.jsonOut, "json", false, "print the API response as JSON")
}

// request converts the flags the user set into a SearchRequest; unset flags
// keep the configured defaults
func (f *searchFlags) request(fs *pflag.FlagSet) api.SearchRequest {
	var req api.SearchRequest
	if fs.Changed("symbol") {
		req.Symbol = &f.symbol
	}
	if fs.Changed("max-move-pct") {
		req.MaxMovePct = &f.maxMovePct
	}
	if fs.Changed("max-delta") {
		req.MaxDelta = &f.maxDelta
	}
	if fs.Changed("min-dte") {
		req.MinDTE = &f.minDTE
	}
	if fs.Changed("max-dte") {
		req.MaxDTE = &f.maxDTE
	}
	if fs.Changed("min-liquidity") {
		req.MinLiquidity = &f.minLiquidity
	}
	if fs.Changed("spread-width") {
		req.SpreadWidth = &f.spreadWidth
	}
	if fs.Changed("num-results") {
		req.NumResults = &f.numResults
	}
	if fs.Changed("sort-by") {
		req.SortBy = &f.sortBy
	}
	if fs.Changed("keep-best") {
		req.KeepBest = &f.keepBest
	}
	if fs.Changed("relaxed-liquidity") {
		req.RelaxedLiquidity = &f.relaxedLiquidity
	}
	if fs.Changed("charts") {
		req.ChartTopN = &f.charts
	}
	return req
}

func writeJSON(out io.Writer, outcome *services.SearchOutcome) error {
	resp := api.NewSearchResponse(outcome.Result, outcome.Summary, outcome.ChartPaths, time.Now())
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func writeReport(out io.Writer, outcome *services.SearchOutcome, verbose bool) {
	r := outcome.Result
	fmt.Fprintf(out, "%s spot %.2f | band ±%.1f%% | DTE %d-%d | sort %s\n",
		r.Symbol, r.Spot, r.Params.MaxMovePct, r.Params.MinDTE, r.Params.MaxDTE, r.Params.SortBy)
	if r.Relaxed {
		fmt.Fprintf(out, "No candidates under the strict delta limit; showing relaxed results\n")
	}

	if r.IsEmpty() {
		rej := r.Trace.Rejections
		fmt.Fprintf(out, "No iron condor candidates found for %s\n", r.Symbol)
		fmt.Fprintf(out, "Rejected: liquidity %d, pricing %d, credit %d, delta %d, bounds %d, spread %d; skipped expirations %d\n",
			rej.Liquidity, rej.Pricing, rej.Credit, rej.Delta, rej.Bounds, rej.Spread, rej.SkippedExpirations)
		return
	}

	if verbose {
		for i, c := range r.Candidates {
			fmt.Fprintf(out, "\n%s\n", c.Format(i, r.Params.MaxMovePct))
		}
	} else {
		writeTable(out, r.Candidates)
	}

	s := outcome.Summary
	fmt.Fprintf(out, "\n%d candidates across %d expirations | mean credit $%.2f | median PoP %.1f%%\n",
		s.Count, s.Expirations, s.MeanCredit, s.MedianProbability*100)
	for _, h := range s.Highlights {
		fmt.Fprintf(out, "  %-16s #%d %s %s/%s/%s/%s\n", h.Criterion+":", h.Candidate.Rank, h.Candidate.Expiration,
			strikeLabel(h.Candidate.LongPutStrike), strikeLabel(h.Candidate.ShortPutStrike),
			strikeLabel(h.Candidate.ShortCallStrike), strikeLabel(h.Candidate.LongCallStrike))
	}
	for _, p := range outcome.ChartPaths {
		fmt.Fprintf(out, "chart: %s\n", p)
	}
	for _, p := range outcome.ExportPaths {
		if p != "" {
			fmt.Fprintf(out, "export: %s\n", p)
		}
	}
}

func writeTable(out io.Writer, candidates []condor.Candidate) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"#", "Expiration", "DTE", "Strikes", "Credit", "Max Loss", "PoP", "Delta", "R/R", "Score"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for i, c := range candidates {
		rank := fmt.Sprintf("%d", i+1)
		if c.BestAvailable {
			rank += "*"
		}
		table.Append([]string{
			rank,
			c.ExpirationLabel(),
			fmt.Sprintf("%d", c.DTE),
			strings.Join([]string{
				strikeLabel(c.LongPutStrike), strikeLabel(c.ShortPutStrike),
				strikeLabel(c.ShortCallStrike), strikeLabel(c.LongCallStrike),
			}, "/"),
			fmt.Sprintf("%.2f", c.NetCredit),
			fmt.Sprintf("%.2f", c.MaxLoss),
			fmt.Sprintf("%.1f%%", c.ProbabilityOfProfit*100),
			fmt.Sprintf("%.4f", c.PositionDelta),
			condor.FormatRatio(c.RiskReward),
			fmt.Sprintf("%.2f", c.StrategyScore),
		})
	}
	table.Render()
}

func strikeLabel(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	return s
}
