package l4classify

import (
	"fmt"
	"image"
	"math"
	"time"

	"github.com/banshee-data/debris-tracker/internal/debris/l3segment"
)

// Label is the class assigned to a region.
type Label string

const (
	// LabelStar is a compact, roughly round source.
	LabelStar Label = "star"
	// LabelDebris is an elongated streak left by a fast mover.
	LabelDebris Label = "debris"
	// LabelNoise is a region whose shape could not be measured.
	LabelNoise Label = "noise"
)

// Labels lists every label in reporting order.
var Labels = []Label{LabelDebris, LabelStar, LabelNoise}

// Detection is one classified region.
type Detection struct {
	FrameIndex     int             `json:"frame_index" cbor:"frame_index"`
	Timestamp      time.Time       `json:"timestamp" cbor:"timestamp"`
	Label          Label           `json:"label" cbor:"label"`
	Confidence     float64         `json:"confidence" cbor:"confidence"`
	CentroidX      float64         `json:"centroid_x" cbor:"centroid_x"`
	CentroidY      float64         `json:"centroid_y" cbor:"centroid_y"`
	Area           int             `json:"area_px" cbor:"area_px"`
	BBox           image.Rectangle `json:"bbox" cbor:"bbox"`
	Flux           float64         `json:"flux" cbor:"flux"`
	Peak           float64         `json:"peak" cbor:"peak"`
	SNR            float64         `json:"snr" cbor:"snr"`
	Elongation     float64         `json:"elongation" cbor:"elongation"`
	LengthPx       float64         `json:"length_px" cbor:"length_px"`
	WidthPx        float64         `json:"width_px" cbor:"width_px"`
	OrientationDeg float64         `json:"orientation_deg" cbor:"orientation_deg"`
	NoiseSigma     float64         `json:"noise_sigma" cbor:"noise_sigma"`
	TouchesBorder  bool            `json:"touches_border" cbor:"touches_border"`
	Model          string          `json:"model" cbor:"model"`
}

// Classifier labels a measured region. Implementations may be rule based
// or learned; the pipeline only depends on this contract.
type Classifier interface {
	Classify(reg l3segment.Region, noise l3segment.Noise) Detection
}

// Params configures ShapeClassifier.
type Params struct {
	ElongationThreshold float64 // minimum sqrt(lambda1/lambda2) for debris (default 2.294)
	MinStreakArea       int     // minimum debris area, px (default 15)
	ThresholdSigma      float64 // segmentation k, used by the confidence score
	MinRegionArea       int     // segmentation minimum area, used by the confidence score
	BorderPenalty       float64 // confidence multiplier for border regions, [0, 1]
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if !(p.ElongationThreshold > 1) {
		return fmt.Errorf("ElongationThreshold must be greater than 1, got %f", p.ElongationThreshold)
	}
	if p.MinStreakArea < 0 {
		return fmt.Errorf("MinStreakArea must be non-negative, got %d", p.MinStreakArea)
	}
	if !(p.ThresholdSigma > 0) {
		return fmt.Errorf("ThresholdSigma must be positive, got %f", p.ThresholdSigma)
	}
	if p.MinRegionArea < 1 {
		return fmt.Errorf("MinRegionArea must be at least 1, got %d", p.MinRegionArea)
	}
	if p.BorderPenalty < 0 || p.BorderPenalty > 1 || math.IsNaN(p.BorderPenalty) {
		return fmt.Errorf("BorderPenalty must be in [0, 1], got %f", p.BorderPenalty)
	}
	return nil
}

// ShapeClassifier separates streaks from point sources by elongation.
type ShapeClassifier struct {
	ModelVersion string
	params       Params
}

var _ Classifier = (*ShapeClassifier)(nil)

// NewShapeClassifier validates p and returns a classifier.
func NewShapeClassifier(p Params) (*ShapeClassifier, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	diagf("shape classifier: elongation>=%.3f min_streak=%d border_penalty=%.2f",
		p.ElongationThreshold, p.MinStreakArea, p.BorderPenalty)
	return &ShapeClassifier{ModelVersion: "moments-v1.0", params: p}, nil
}

func (c *ShapeClassifier) Params() Params { return c.params }

// Classify labels reg. Regions at or above the elongation threshold and
// the streak area are debris; other measurable regions are stars.
// Regions whose moments are degenerate are noise with zero confidence.
func (c *ShapeClassifier) Classify(reg l3segment.Region, noise l3segment.Noise) Detection {
	shape := MeasureShape(reg)
	d := Detection{
		CentroidX:      reg.CentroidX,
		CentroidY:      reg.CentroidY,
		Area:           reg.Area,
		BBox:           reg.BBox,
		Flux:           reg.Flux,
		Peak:           reg.Peak,
		Elongation:     shape.Elongation,
		LengthPx:       shape.LengthPx,
		WidthPx:        shape.WidthPx,
		OrientationDeg: shape.OrientationDeg,
		NoiseSigma:     noise.Sigma,
		TouchesBorder:  reg.TouchesBorder,
		Model:          c.ModelVersion,
	}
	if noise.Sigma > 0 {
		d.SNR = reg.Peak / noise.Sigma
	}

	if shape.Degenerate {
		d.Label = LabelNoise
		d.Confidence = 0
		opsf("region %d (area %d) has degenerate moments, labelled noise", reg.ID, reg.Area)
		return d
	}

	if shape.Elongation >= c.params.ElongationThreshold && reg.Area >= c.params.MinStreakArea {
		d.Label = LabelDebris
	} else {
		d.Label = LabelStar
	}
	d.Confidence = c.confidence(d)
	tracef("region %d: %s elongation=%.2f area=%d confidence=%.2f", reg.ID, d.Label, d.Elongation, d.Area, d.Confidence)
	return d
}

// confidence is a heuristic in [0, 1]: it grows with peak SNR above the
// detection threshold and with area above the minimum region size, and
// is scaled down for regions cut by the frame edge. It is not a
// calibrated probability.
func (c *ShapeClassifier) confidence(d Detection) float64 {
	if d.SNR <= 0 {
		return 0
	}
	signal := 1 - c.params.ThresholdSigma/d.SNR
	size := float64(d.Area) / float64(d.Area+c.params.MinRegionArea)
	conf := clampConfidence(signal*size, 0, 1)
	if d.TouchesBorder {
		conf *= c.params.BorderPenalty
	}
	return conf
}

// clampConfidence clamps a confidence value to the range [min, max].
func clampConfidence(value, min, max float64) float64 {
	if math.IsNaN(value) {
		return min
	}
	if value > max {
		return max
	}
	if value < min {
		return min
	}
	return value
}
