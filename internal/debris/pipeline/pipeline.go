package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/debris-tracker/internal/debris/l1frames"
	"github.com/banshee-data/debris-tracker/internal/debris/l2background"
	"github.com/banshee-data/debris-tracker/internal/debris/l3segment"
	"github.com/banshee-data/debris-tracker/internal/debris/l4classify"
)

// FrameMetrics counts what happened to one frame on its way through the
// stages.
type FrameMetrics struct {
	FrameIndex          int
	SignificantPixels   int
	Regions             int
	TooSmall            int
	Stars               int
	Debris              int
	Noise               int
	BackgroundRefreshed bool
	Elapsed             time.Duration
}

// FrameResult is the outcome of processing one frame.
type FrameResult struct {
	Frame      l1frames.Frame
	State      State
	Synthetic  bool
	Detections []l4classify.Detection
	Noise      l3segment.Noise
	Residual   l2background.Residual
	Background l2background.Image
	Metrics    FrameMetrics
}

// Count returns the number of detections carrying label.
func (r FrameResult) Count(label l4classify.Label) int {
	n := 0
	for _, d := range r.Detections {
		if d.Label == label {
			n++
		}
	}
	return n
}

// SyntheticSource yields a frame together with the exact background it was
// generated on, bypassing the buffer and the median estimate.
type SyntheticSource interface {
	SyntheticFrame() (l1frames.Frame, l2background.Image, error)
}

// Option customises a Pipeline at construction.
type Option func(*Pipeline)

// WithClassifier replaces the default shape classifier.
func WithClassifier(c l4classify.Classifier) Option {
	return func(p *Pipeline) { p.classifier = c }
}

// Pipeline runs buffer -> background -> difference -> segment -> classify
// for each frame. It is not safe for concurrent use; feed it from one
// goroutine.
type Pipeline struct {
	cfg        Config
	buffer     *l1frames.Buffer
	estimator  *l2background.Estimator
	segmenter  *l3segment.Segmenter
	classifier l4classify.Classifier

	state        State
	background   l2background.Image
	sinceRefresh int
}

// New validates cfg and builds a pipeline in StateIdle.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	buf, err := l1frames.NewBuffer(cfg.BufferSize, cfg.WarmupMinFrames)
	if err != nil {
		return nil, &InvalidConfigError{Field: "BufferSize", Reason: err.Error()}
	}
	seg, err := l3segment.NewSegmenter(cfg.segmentParams())
	if err != nil {
		return nil, &InvalidConfigError{Field: "Segmentation", Reason: err.Error()}
	}
	cls, err := l4classify.NewShapeClassifier(cfg.classifyParams())
	if err != nil {
		return nil, &InvalidConfigError{Field: "Classification", Reason: err.Error()}
	}
	p := &Pipeline{
		cfg:        cfg,
		buffer:     buf,
		estimator:  l2background.NewEstimator(),
		segmenter:  seg,
		classifier: cls,
	}
	for _, opt := range opts {
		opt(p)
	}
	diagf("pipeline configured: buffer=%d warmup=%d k=%.2f min_area=%d elongation=%.3f",
		cfg.BufferSize, cfg.WarmupMinFrames, cfg.ThresholdSigma, cfg.MinRegionArea, cfg.ElongationThreshold)
	return p, nil
}

// Config returns the validated configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// State returns the current warm-up state.
func (p *Pipeline) State() State { return p.state }

// Buffered returns how many frames are held.
func (p *Pipeline) Buffered() int { return p.buffer.Len() }

// Background returns the most recent background estimate, if any.
func (p *Pipeline) Background() (l2background.Image, bool) {
	return p.background, !p.background.Empty()
}

// Reset drops the buffer and background and returns to StateIdle.
func (p *Pipeline) Reset() {
	p.buffer.Reset()
	p.background = l2background.Image{}
	p.sinceRefresh = 0
	p.state = StateIdle
	diagf("pipeline reset")
}

// Process differences f against the background of the frames buffered
// before it, classifies the result, then pushes f. A frame never
// contributes to its own background.
//
// Until WarmupMinFrames frames are held, f is only buffered and the result
// comes back in StateWarming together with an *InsufficientDataError; keep
// feeding frames. The first frame always moves Idle to Warming. A frame
// whose size differs from the buffered frames returns
// *DimensionMismatchError and leaves the pipeline untouched.
func (p *Pipeline) Process(f l1frames.Frame) (FrameResult, error) {
	start := time.Now()
	if err := p.buffer.Accepts(f); err != nil {
		return FrameResult{Frame: f, State: p.state}, err
	}

	if err := p.buffer.Require(); err != nil {
		if perr := p.buffer.Push(f); perr != nil {
			return FrameResult{Frame: f, State: p.state}, perr
		}
		p.state = StateWarming
		tracef("frame %d: warming %d/%d", f.Index, p.buffer.Len(), p.buffer.MinFrames())
		return FrameResult{Frame: f, State: p.state}, err
	}
	if p.state != StateReady {
		diagf("background ready after %d frames", p.buffer.Len())
	}
	p.state = StateReady

	refreshed := false
	if p.background.Empty() || p.sinceRefresh >= p.cfg.BackgroundRefreshInterval {
		bg, err := p.estimator.Estimate(p.buffer)
		if err != nil {
			return FrameResult{Frame: f, State: p.state}, fmt.Errorf("estimating background: %w", err)
		}
		p.background = bg
		p.sinceRefresh = 0
		refreshed = true
	}
	p.sinceRefresh++
	if err := p.buffer.Push(f); err != nil {
		return FrameResult{Frame: f, State: p.state}, err
	}

	res, err := p.detect(f, p.background)
	if err != nil {
		return FrameResult{Frame: f, State: p.state}, err
	}
	res.Metrics.BackgroundRefreshed = refreshed
	res.Metrics.Elapsed = time.Since(start)
	return res, nil
}

// ProcessSynthetic differences a synthetic frame against its known
// background and classifies the result. The buffer and state are not
// touched, so it can be called at any time.
func (p *Pipeline) ProcessSynthetic(src SyntheticSource) (FrameResult, error) {
	start := time.Now()
	f, bg, err := src.SyntheticFrame()
	if err != nil {
		return FrameResult{}, fmt.Errorf("generating synthetic frame: %w", err)
	}
	res, err := p.detect(f, bg)
	if err != nil {
		return FrameResult{Frame: f, State: p.state, Synthetic: true}, err
	}
	res.Synthetic = true
	res.Metrics.Elapsed = time.Since(start)
	return res, nil
}

func (p *Pipeline) detect(f l1frames.Frame, bg l2background.Image) (FrameResult, error) {
	residual, err := l2background.Subtract(f, bg)
	if err != nil {
		return FrameResult{}, err
	}
	seg, err := p.segmenter.Segment(residual)
	if err != nil {
		return FrameResult{}, fmt.Errorf("segmenting frame %d: %w", f.Index, err)
	}

	res := FrameResult{
		Frame:      f,
		State:      p.state,
		Noise:      seg.Noise,
		Residual:   residual,
		Background: bg,
		Detections: make([]l4classify.Detection, 0, len(seg.Regions)),
		Metrics: FrameMetrics{
			FrameIndex:        f.Index,
			SignificantPixels: seg.Significant,
			Regions:           len(seg.Regions),
			TooSmall:          seg.TooSmall,
		},
	}
	for _, reg := range seg.Regions {
		d := p.classifier.Classify(reg, seg.Noise)
		d.FrameIndex = f.Index
		d.Timestamp = f.Timestamp
		switch d.Label {
		case l4classify.LabelDebris:
			res.Metrics.Debris++
		case l4classify.LabelStar:
			res.Metrics.Stars++
		default:
			res.Metrics.Noise++
		}
		res.Detections = append(res.Detections, d)
	}
	tracef("frame %d: sigma=%.3f regions=%d debris=%d stars=%d noise=%d",
		f.Index, seg.Noise.Sigma, len(seg.Regions), res.Metrics.Debris, res.Metrics.Stars, res.Metrics.Noise)
	if res.Metrics.Debris > 0 {
		diagf("frame %d: %d debris candidate(s)", f.Index, res.Metrics.Debris)
	}
	return res, nil
}

// IsWarming reports whether err only means the pipeline needs more frames.
func IsWarming(err error) bool {
	var insufficient *InsufficientDataError
	return errors.As(err, &insufficient)
}
