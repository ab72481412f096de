package chart

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
	"github.com/xingfanxia/iron-condor-combo-finder/internal/config"
)

// ComparisonLimit caps how many condors share one comparison chart
const ComparisonLimit = 5

var (
	curveColor     = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	zeroColor      = color.RGBA{R: 214, G: 39, B: 40, A: 120}
	spotColor      = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	strikeColor    = color.RGBA{R: 127, G: 127, B: 127, A: 200}
	breakEvenColor = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	palette        = []color.Color{
		curveColor,
		color.RGBA{R: 148, G: 103, B: 189, A: 255},
		color.RGBA{R: 140, G: 86, B: 75, A: 255},
		color.RGBA{R: 227, G: 119, B: 194, A: 255},
		color.RGBA{R: 23, G: 190, B: 207, A: 255},
	}
)

// Renderer writes P/L charts as PNG files
type Renderer struct {
	dir    string
	width  vg.Length
	height vg.Length
	points int
	logger *slog.Logger
}

// NewRenderer creates a renderer writing into cfg.Dir
func NewRenderer(cfg config.ChartConfig, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	width, height := cfg.Width, cfg.Height
	if width <= 0 {
		width = 10
	}
	if height <= 0 {
		height = 6
	}
	return &Renderer{
		dir:    cfg.Dir,
		width:  vg.Length(width) * vg.Inch,
		height: vg.Length(height) * vg.Inch,
		points: cfg.Points,
		logger: logger.With(slog.String("component", "chart")),
	}
}

// Dir returns the output directory
func (r *Renderer) Dir() string {
	return r.dir
}

// Render draws the expiration P/L of c with its short strikes, break-evens
// and spot marked, and returns the written path.
func (r *Renderer) Render(symbol string, c condor.Candidate, spot float64) (string, error) {
	curve := PayoffCurve(c, r.points)
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s iron condor %s (%d DTE)", symbol, c.ExpirationLabel(), c.DTE)
	p.X.Label.Text = "Underlying price at expiration"
	p.Y.Label.Text = "Profit/Loss ($)"
	p.Add(plotter.NewGrid())

	pnl, err := plotter.NewLine(toXYs(curve.Prices, curve.PnL))
	if err != nil {
		return "", fmt.Errorf("build payoff line: %w", err)
	}
	pnl.Color = curveColor
	pnl.Width = vg.Points(2)
	p.Add(pnl)
	p.Legend.Add(fmt.Sprintf("%g/%g/%g/%g credit %.2f",
		c.LongPutStrike, c.ShortPutStrike, c.ShortCallStrike, c.LongCallStrike, c.NetCredit), pnl)

	lo, hi := curve.Prices[0], curve.Prices[len(curve.Prices)-1]
	if err := addHorizontal(p, lo, hi, 0, zeroColor); err != nil {
		return "", err
	}

	yMin, yMax := curve.MaxLoss, curve.MaxProfit
	pad := math.Max((yMax-yMin)*0.1, 1)
	yMin, yMax = yMin-pad, yMax+pad

	marks := []struct {
		x      float64
		c      color.Color
		dashed bool
		label  string
	}{
		{c.ShortPutStrike, strikeColor, true, "short strikes"},
		{c.ShortCallStrike, strikeColor, true, ""},
		{curve.BreakEvenLow, breakEvenColor, true, "break-even"},
		{curve.BreakEvenHigh, breakEvenColor, true, ""},
		{spot, spotColor, false, fmt.Sprintf("spot %.2f", spot)},
	}
	for _, m := range marks {
		if m.x < lo || m.x > hi {
			continue
		}
		line, err := vertical(m.x, yMin, yMax, m.c, m.dashed)
		if err != nil {
			return "", err
		}
		p.Add(line)
		if m.label != "" {
			p.Legend.Add(m.label, line)
		}
	}
	p.Legend.Top = true

	path := filepath.Join(r.dir, FileName(symbol, c))
	if err := r.save(p, path); err != nil {
		return "", err
	}
	r.logger.Debug("chart written",
		slog.String("path", path),
		slog.String("symbol", symbol),
		slog.String("expiration", c.ExpirationLabel()),
	)
	return path, nil
}

// RenderTop renders the first n candidates and returns their paths in order
func (r *Renderer) RenderTop(ctx context.Context, symbol string, candidates []condor.Candidate, spot float64, n int) ([]string, error) {
	if n > len(candidates) {
		n = len(candidates)
	}
	paths := make([]string, 0, n)
	for _, c := range candidates[:n] {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		path, err := r.Render(symbol, c, spot)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// RenderComparison overlays up to ComparisonLimit payoff curves on a shared
// price axis.
func (r *Renderer) RenderComparison(symbol string, candidates []condor.Candidate, spot float64, name string) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("comparison chart for %s: no candidates", symbol)
	}
	if len(candidates) > ComparisonLimit {
		candidates = candidates[:ComparisonLimit]
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range candidates {
		l, h := PriceRange(c)
		lo, hi = math.Min(lo, l), math.Max(hi, h)
	}

	points := r.points
	if points < 2 {
		points = DefaultPoints
	}
	step := (hi - lo) / float64(points-1)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s iron condor comparison", symbol)
	p.X.Label.Text = "Underlying price at expiration"
	p.Y.Label.Text = "Profit/Loss ($)"
	p.Add(plotter.NewGrid())

	yMin, yMax := math.Inf(1), math.Inf(-1)
	for i, c := range candidates {
		xys := make(plotter.XYs, points)
		for j := range xys {
			x := lo + float64(j)*step
			xys[j].X, xys[j].Y = x, Payoff(c, x)
			yMin, yMax = math.Min(yMin, xys[j].Y), math.Max(yMax, xys[j].Y)
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return "", fmt.Errorf("build payoff line: %w", err)
		}
		line.Color = palette[i%len(palette)]
		line.Width = vg.Points(2)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("#%d %s %g/%g (%.2f)", i+1, c.ExpirationLabel(), c.ShortPutStrike, c.ShortCallStrike, c.NetCredit), line)
	}

	if err := addHorizontal(p, lo, hi, 0, zeroColor); err != nil {
		return "", err
	}
	if spot >= lo && spot <= hi {
		line, err := vertical(spot, yMin, yMax, spotColor, true)
		if err != nil {
			return "", err
		}
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("spot %.2f", spot), line)
	}

	path := filepath.Join(r.dir, name)
	if err := r.save(p, path); err != nil {
		return "", err
	}
	return path, nil
}

func (r *Renderer) save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create chart directory: %w", err)
	}
	if err := p.Save(r.width, r.height, path); err != nil {
		return fmt.Errorf("save chart %s: %w", path, err)
	}
	return nil
}

func toXYs(xs, ys []float64) plotter.XYs {
	out := make(plotter.XYs, len(xs))
	for i := range xs {
		out[i].X, out[i].Y = xs[i], ys[i]
	}
	return out
}

func addHorizontal(p *plot.Plot, x0, x1, y float64, c color.Color) error {
	line, err := plotter.NewLine(plotter.XYs{{X: x0, Y: y}, {X: x1, Y: y}})
	if err != nil {
		return fmt.Errorf("build zero line: %w", err)
	}
	line.Color = c
	p.Add(line)
	return nil
}

func vertical(x, y0, y1 float64, c color.Color, dashed bool) (*plotter.Line, error) {
	line, err := plotter.NewLine(plotter.XYs{{X: x, Y: y0}, {X: x, Y: y1}})
	if err != nil {
		return nil, fmt.Errorf("build marker at %.2f: %w", x, err)
	}
	line.Color = c
	if dashed {
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	}
	return line, nil
}
