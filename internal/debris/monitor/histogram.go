package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/debris-tracker/internal/debris/l2background"
	"github.com/banshee-data/debris-tracker/internal/debris/l3segment"
)

// histogramBins is the bin count for residual histograms.
const histogramBins = 80

// WriteResidualHistogram plots the distribution of residual values with
// the noise centre and the ±k·σ thresholds marked. The output format
// follows the file extension (.png, .svg, .pdf).
func WriteResidualHistogram(path string, r l2background.Residual, noise l3segment.Noise, k float64) error {
	if r.Empty() {
		return fmt.Errorf("residual for frame %d is empty", r.FrameIndex)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Frame %d - Residual (σ=%.2f, k=%.1f)", r.FrameIndex, noise.Sigma, k)
	p.X.Label.Text = "Residual (DN)"
	p.Y.Label.Text = "Pixels"

	hist, err := plotter.NewHist(plotter.Values(r.Pix), histogramBins)
	if err != nil {
		return fmt.Errorf("histogram: %w", err)
	}
	hist.FillColor = color.RGBA{R: 90, G: 120, B: 200, A: 255}
	p.Add(hist)

	top := 0.0
	for _, b := range hist.Bins {
		if b.Weight > top {
			top = b.Weight
		}
	}

	marks := []struct {
		name string
		x    float64
		c    color.Color
	}{
		{"centre", noise.Center, color.RGBA{G: 160, A: 255}},
		{"+kσ", noise.Center + k*noise.Sigma, color.RGBA{R: 220, A: 255}},
		{"-kσ", noise.Center - k*noise.Sigma, color.RGBA{R: 220, A: 255}},
	}
	for _, m := range marks {
		line, err := plotter.NewLine(plotter.XYs{{X: m.x, Y: 0}, {X: m.x, Y: top}})
		if err != nil {
			return fmt.Errorf("%s line: %w", m.name, err)
		}
		line.Color = m.c
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(m.name, line)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	diagf("residual histogram for frame %d written to %s", r.FrameIndex, path)
	return nil
}
