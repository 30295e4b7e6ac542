package monitor

import (
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/debris-tracker/internal/debris/l4classify"
	"github.com/banshee-data/debris-tracker/internal/debris/pipeline"
)

// Collector keeps every detection of a session for charting. It
// satisfies pipeline.Sink.
type Collector struct {
	mu     sync.Mutex
	dets   []l4classify.Detection
	bounds image.Rectangle
}

// Consume implements pipeline.Sink.
func (c *Collector) Consume(res pipeline.FrameResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bounds = c.bounds.Union(res.Frame.Bounds())
	c.dets = append(c.dets, res.Detections...)
	return nil
}

// Detections returns a copy of what has been collected.
func (c *Collector) Detections() []l4classify.Detection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]l4classify.Detection(nil), c.dets...)
}

// WriteChart renders the collected detections with WriteDetectionChart.
func (c *Collector) WriteChart(w io.Writer, title string) error {
	c.mu.Lock()
	dets := append([]l4classify.Detection(nil), c.dets...)
	bounds := c.bounds
	c.mu.Unlock()
	return WriteDetectionChart(w, title, dets, bounds)
}

func labelSeriesOpts(label l4classify.Label) charts.SeriesOpts {
	switch label {
	case l4classify.LabelDebris:
		return charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8})
	case l4classify.LabelStar:
		return charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4})
	default:
		return charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3})
	}
}

// WriteDetectionChart renders an HTML scatter of detection centroids in
// image coordinates, one series per label. Each point carries its frame
// index as the third value.
func WriteDetectionChart(w io.Writer, title string, dets []l4classify.Detection, bounds image.Rectangle) error {
	series := make(map[l4classify.Label][]opts.ScatterData)
	for _, d := range dets {
		series[d.Label] = append(series[d.Label], opts.ScatterData{
			Value: []interface{}{d.CentroidX, d.CentroidY, d.FrameIndex},
			Name:  fmt.Sprintf("frame %d", d.FrameIndex),
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Debris Detections", Theme: "dark", Width: "1000px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("detections=%d frame=%dx%d", len(dets), bounds.Dx(), bounds.Dy())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: bounds.Min.X, Max: bounds.Max.X, Name: "x (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: bounds.Min.Y, Max: bounds.Max.Y, Name: "y (px)", NameLocation: "middle", NameGap: 30}),
	)
	for _, label := range l4classify.Labels {
		data, ok := series[label]
		if !ok {
			continue
		}
		scatter.AddSeries(string(label), data, labelSeriesOpts(label))
	}

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("render detection chart: %w", err)
	}
	return nil
}
