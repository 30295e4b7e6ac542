// Command debris-detect runs the streak detector over a directory of
// frames (PNG, JPEG, TIFF or FITS) or a generated sequence and writes the
// session's detections, diagnostics and metadata.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/banshee-data/debris-tracker/internal/config"
	"github.com/banshee-data/debris-tracker/internal/debris/export"
	"github.com/banshee-data/debris-tracker/internal/debris/l1frames"
	"github.com/banshee-data/debris-tracker/internal/debris/l2background"
	"github.com/banshee-data/debris-tracker/internal/debris/l3segment"
	"github.com/banshee-data/debris-tracker/internal/debris/l4classify"
	"github.com/banshee-data/debris-tracker/internal/debris/monitor"
	"github.com/banshee-data/debris-tracker/internal/debris/pipeline"
	"github.com/banshee-data/debris-tracker/internal/debris/storage/sqlite"
	"github.com/banshee-data/debris-tracker/internal/debris/synthetic"
	"github.com/banshee-data/debris-tracker/internal/monitoring"
	"github.com/banshee-data/debris-tracker/internal/version"
)

type options struct {
	input      string
	synthetic  bool
	frames     int
	width      int
	height     int
	seed       uint64
	configPath string
	outDir     string
	dbPath     string
	allLabels  bool
	cbor       bool
	annotate   bool
	histograms bool
	logLevel   string
}

func parseFlags(args []string) (options, bool, error) {
	var o options
	fs := flag.NewFlagSet("debris-detect", flag.ContinueOnError)
	fs.StringVar(&o.input, "input", "", "Directory of frames, processed in file-name order")
	fs.BoolVar(&o.synthetic, "synthetic", false, "Process a generated star field with a moving streak instead of -input")
	fs.IntVar(&o.frames, "frames", 40, "Number of generated frames (synthetic mode)")
	fs.IntVar(&o.width, "width", 320, "Generated frame width (synthetic mode)")
	fs.IntVar(&o.height, "height", 120, "Generated frame height (synthetic mode)")
	fs.Uint64Var(&o.seed, "seed", 42, "Noise seed (synthetic mode)")
	fs.StringVar(&o.configPath, "config", "", "Tuning file (.json or .yaml); built-in defaults when empty")
	fs.StringVar(&o.outDir, "out", "session", "Output directory for detections and diagnostics")
	fs.StringVar(&o.dbPath, "db", "", "SQLite database to record the session in (disabled when empty)")
	fs.BoolVar(&o.allLabels, "all-labels", false, "Write stars and noise to detections.json as well as debris")
	fs.BoolVar(&o.cbor, "cbor", false, "Also write detections.cbor")
	fs.BoolVar(&o.annotate, "annotate", true, "Save an annotated PNG for every frame with debris")
	fs.BoolVar(&o.histograms, "histograms", false, "Save a residual histogram for every frame with debris")
	fs.StringVar(&o.logLevel, "log-level", "ops", "Package log level: quiet, ops, diag or trace")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return o, false, err
	}
	if *showVersion {
		return o, true, nil
	}
	if o.synthetic == (o.input != "") {
		return o, false, errors.New("exactly one of -input or -synthetic is required")
	}
	return o, false, nil
}

func setLogWriters(level monitoring.Level, w io.Writer) {
	ops, diag, trace := monitoring.Streams(level, w)
	l1frames.SetLogWriters(ops, diag, trace)
	l2background.SetLogWriters(ops, diag, trace)
	l3segment.SetLogWriters(ops, diag, trace)
	l4classify.SetLogWriters(ops, diag, trace)
	pipeline.SetLogWriters(ops, diag, trace)
	sqlite.SetLogWriters(ops, diag, trace)
	monitor.SetLogWriters(ops, diag, trace)
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func openSource(o options) (l1frames.Source, string, error) {
	if o.synthetic {
		field := synthetic.DefaultField(o.width, o.height, o.seed)
		field.Stars = synthetic.RandomStars(o.width*o.height/800, o.width, o.height, 600, 1200, 1.2, o.seed)
		return synthetic.NewStreakSequence(field, o.frames), "synthetic", nil
	}
	src, err := l1frames.OpenDir(o.input)
	if err != nil {
		return nil, "", err
	}
	if src.Len() == 0 {
		return nil, "", fmt.Errorf("no frames found in %s", o.input)
	}
	monitoring.Logf("found %d frames in %s", src.Len(), o.input)
	return src, o.input, nil
}

// run executes one detection session and returns its summary.
func run(ctx context.Context, o options) (pipeline.RunSummary, error) {
	level, err := monitoring.ParseLevel(o.logLevel)
	if err != nil {
		return pipeline.RunSummary{}, err
	}
	setLogWriters(level, os.Stderr)

	tuning, err := loadTuning(o.configPath)
	if err != nil {
		return pipeline.RunSummary{}, err
	}
	p, err := pipeline.New(pipeline.ConfigFromTuning(tuning))
	if err != nil {
		return pipeline.RunSummary{}, err
	}
	params, err := json.Marshal(tuning)
	if err != nil {
		return pipeline.RunSummary{}, fmt.Errorf("marshal tuning: %w", err)
	}

	src, sourceName, err := openSource(o)
	if err != nil {
		return pipeline.RunSummary{}, err
	}
	if err := os.MkdirAll(o.outDir, 0o755); err != nil {
		return pipeline.RunSummary{}, fmt.Errorf("create output dir: %w", err)
	}

	sessionID := uuid.New().String()
	var sinks []pipeline.Sink
	var store *sqlite.DetectionStore
	if o.dbPath != "" {
		db, err := sqlite.Open(o.dbPath)
		if err != nil {
			return pipeline.RunSummary{}, err
		}
		defer db.Close()
		store, err = db.StartSession(&sqlite.Session{
			SessionID:  sessionID,
			Source:     sourceName,
			ParamsJSON: params,
			Version:    version.Short(),
		})
		if err != nil {
			return pipeline.RunSummary{}, err
		}
		sinks = append(sinks, store)
	}

	var labels []l4classify.Label
	if !o.allLabels {
		labels = []l4classify.Label{l4classify.LabelDebris}
	}
	jsonOut := export.NewJSONWriter(filepath.Join(o.outDir, export.DetectionsFile), labels...)
	collector := &monitor.Collector{}
	sinks = append(sinks, jsonOut, collector)

	var cborOut *export.CBORWriter
	if o.cbor {
		f, err := os.Create(filepath.Join(o.outDir, "detections.cbor"))
		if err != nil {
			return pipeline.RunSummary{}, fmt.Errorf("create cbor output: %w", err)
		}
		cborOut = export.NewCBORWriter(f)
		// Covers early returns; the success path closes it explicitly.
		defer cborOut.Close()
		sinks = append(sinks, cborOut)
	}
	if o.annotate {
		sinks = append(sinks, monitor.NewAnnotator(o.outDir))
	}
	if o.histograms {
		k := p.Config().ThresholdSigma
		histDir := filepath.Join(o.outDir, "histograms")
		sinks = append(sinks, pipeline.SinkFunc(func(res pipeline.FrameResult) error {
			if res.Count(l4classify.LabelDebris) == 0 {
				return nil
			}
			path := filepath.Join(histDir, fmt.Sprintf("residual_%05d.png", res.Frame.Index))
			return monitor.WriteResidualHistogram(path, res.Residual, res.Noise, k)
		}))
	}
	sinks = append(sinks, pipeline.SinkFunc(func(res pipeline.FrameResult) error {
		if n := res.Count(l4classify.LabelDebris); n > 0 {
			monitoring.Logf("frame %05d: %d debris, %d stars", res.Frame.Index, n, res.Count(l4classify.LabelStar))
		}
		return nil
	}))

	monitoring.Logf("session %s: source=%s out=%s", sessionID, sourceName, o.outDir)
	summary, runErr := pipeline.Run(ctx, src, p, sinks...)

	// Whatever was gathered before an error is still written out.
	if err := jsonOut.Close(); err != nil {
		return summary, err
	}
	if cborOut != nil {
		if err := cborOut.Close(); err != nil {
			return summary, err
		}
	}
	chartPath := filepath.Join(o.outDir, "detections.html")
	if err := writeChart(chartPath, collector, sessionID); err != nil {
		return summary, err
	}
	if bg, ok := p.Background(); ok {
		if err := monitor.WriteBackgroundPreview(filepath.Join(o.outDir, monitor.PreviewFile), bg); err != nil {
			return summary, err
		}
	}
	meta := export.NewSessionMetadata(sessionID, sourceName, summary)
	meta.Version = version.Short()
	meta.Params = params
	if err := export.WriteMetadata(filepath.Join(o.outDir, export.MetadataFile), meta); err != nil {
		return summary, err
	}
	if store != nil {
		if err := store.FinishSession(summary); err != nil {
			return summary, err
		}
	}
	return summary, runErr
}

func writeChart(path string, c *monitor.Collector, sessionID string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}
	if err := c.WriteChart(f, "Session "+sessionID); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func main() {
	o, showVersion, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
	if showVersion {
		fmt.Println("debris-detect", version.String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := run(ctx, o)
	monitoring.Logf("frames=%d warming=%d discarded=%d processed=%d fps=%.2f duration=%v",
		summary.Frames, summary.Warming, summary.Discarded, summary.Processed, summary.FPS(), summary.Duration())
	for _, label := range l4classify.Labels {
		monitoring.Logf("  %-6s %d", label, summary.Detections[label])
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("detection failed: %v", err)
	}
	monitoring.Logf("✓ Results written to %s", o.outDir)
}
