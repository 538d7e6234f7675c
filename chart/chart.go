// Package chart renders revenue series as PNG charts.
package chart

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/TFMV/salesdash/aggregate"
	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Output file names, relative to Config.OutputDir.
const (
	ProductChartFile = "revenue_by_product.png"
	MonthChartFile   = "revenue_by_month.png"
)

var (
	skyBlue = color.RGBA{R: 135, G: 206, B: 235, A: 255}
	green   = color.RGBA{R: 0, G: 128, B: 0, A: 255}
)

// Config controls where and how large charts are rendered.
type Config struct {
	OutputDir string
	Width     vg.Length
	Height    vg.Length
	Logger    *zap.Logger
}

// DefaultConfig renders 10x6 inch charts into dir.
func DefaultConfig(dir string) Config {
	return Config{
		OutputDir: dir,
		Width:     10 * vg.Inch,
		Height:    6 * vg.Inch,
	}
}

// Artifacts are the paths of the written charts.
type Artifacts struct {
	ProductChart string
	MonthChart   string
}

// Render writes the bar chart of revenue by product and the line chart of
// revenue by month, creating the output directory if needed. Existing
// files are overwritten.
func Render(cfg Config, byProduct []aggregate.ProductRevenue, byMonth []aggregate.MonthRevenue) (*Artifacts, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %q: %w", cfg.OutputDir, err)
	}

	out := &Artifacts{
		ProductChart: filepath.Join(cfg.OutputDir, ProductChartFile),
		MonthChart:   filepath.Join(cfg.OutputDir, MonthChartFile),
	}

	bar, err := ProductBarChart(byProduct)
	if err != nil {
		return nil, err
	}
	if err := save(bar, cfg, out.ProductChart); err != nil {
		return nil, err
	}
	logger.Info("Chart written", zap.String("path", out.ProductChart), zap.Int("bars", len(byProduct)))

	line, err := MonthLineChart(byMonth)
	if err != nil {
		return nil, err
	}
	if err := save(line, cfg, out.MonthChart); err != nil {
		return nil, err
	}
	logger.Info("Chart written", zap.String("path", out.MonthChart), zap.Int("points", len(byMonth)))

	return out, nil
}

// ProductBarChart builds a bar per product, in the order given.
func ProductBarChart(byProduct []aggregate.ProductRevenue) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Revenue by Product"
	p.X.Label.Text = "Product"
	p.Y.Label.Text = "Revenue ($)"
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	if len(byProduct) == 0 {
		return p, nil
	}

	values := make(plotter.Values, len(byProduct))
	names := make([]string, len(byProduct))
	for i, r := range byProduct {
		values[i] = r.Revenue
		names[i] = r.Product
	}

	bars, err := plotter.NewBarChart(values, barWidth(len(values)))
	if err != nil {
		return nil, fmt.Errorf("failed to build bar chart: %w", err)
	}
	bars.Color = skyBlue
	bars.LineStyle.Width = vg.Length(0)

	p.Add(bars)
	p.NominalX(names...)
	return p, nil
}

// MonthLineChart builds a line with a marker at each month.
func MonthLineChart(byMonth []aggregate.MonthRevenue) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Revenue by Month"
	p.X.Label.Text = "Month"
	p.Y.Label.Text = "Revenue ($)"
	p.Add(plotter.NewGrid())

	if len(byMonth) == 0 {
		return p, nil
	}

	pts := make(plotter.XYs, len(byMonth))
	names := make([]string, len(byMonth))
	for i, r := range byMonth {
		pts[i].X = float64(i)
		pts[i].Y = r.Revenue
		names[i] = r.Month.String()
	}

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to build line chart: %w", err)
	}
	line.Color = green
	points.Color = green
	points.Shape = draw.CircleGlyph{}

	p.Add(line, points)
	p.NominalX(names...)
	return p, nil
}

func barWidth(n int) vg.Length {
	return vg.Points(math.Min(40, 500/float64(n)))
}

func save(p *plot.Plot, cfg Config, path string) (err error) {
	w, err := p.WriterTo(cfg.Width, cfg.Height, "png")
	if err != nil {
		return fmt.Errorf("failed to render %q: %w", path, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %q: %w", path, cerr)
		}
	}()

	if _, err := w.WriteTo(file); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return nil
}
