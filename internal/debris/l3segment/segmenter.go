package l3segment

import (
	"fmt"

	"github.com/banshee-data/debris-tracker/internal/debris/l2background"
)

// Params configures a Segmenter.
type Params struct {
	ThresholdSigma float64        // k in center + k*sigma (default 4.0)
	MinRegionArea  int            // smallest kept component, pixels (default 3)
	Connectivity   Connectivity   // 4 or 8 (default 8)
	Estimator      NoiseEstimator // default mad
	Polarity       Polarity       // default absolute
	NoiseFloor     float64        // lower bound on sigma (default 1/sqrt(12))
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	if !(p.ThresholdSigma > 0) {
		return fmt.Errorf("ThresholdSigma must be positive, got %f", p.ThresholdSigma)
	}
	if p.MinRegionArea < 1 {
		return fmt.Errorf("MinRegionArea must be at least 1, got %d", p.MinRegionArea)
	}
	if !p.Connectivity.Valid() {
		return fmt.Errorf("Connectivity must be 4 or 8, got %d", p.Connectivity)
	}
	if !p.Estimator.Valid() {
		return fmt.Errorf("unknown noise estimator %q", p.Estimator)
	}
	if !p.Polarity.Valid() {
		return fmt.Errorf("unknown threshold polarity %q", p.Polarity)
	}
	if p.NoiseFloor < 0 {
		return fmt.Errorf("NoiseFloor must be non-negative, got %f", p.NoiseFloor)
	}
	return nil
}

// Result is everything the segmenter learned about one residual.
type Result struct {
	Noise       Noise
	Mask        Mask
	Regions     []Region
	Significant int // pixels set in Mask
	TooSmall    int // components dropped for area
}

// Segmenter turns a residual into measured regions.
type Segmenter struct {
	params Params
}

// floodFraction is the share of significant pixels above which a frame is
// reported as flooded (cloud, dawn, a flash) rather than sparse.
const floodFraction = 0.05

// NewSegmenter validates p and returns a Segmenter.
func NewSegmenter(p Params) (*Segmenter, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	diagf("segmenter: k=%.2f min_area=%d conn=%d noise=%s polarity=%s floor=%.3f",
		p.ThresholdSigma, p.MinRegionArea, p.Connectivity, p.Estimator, p.Polarity, p.NoiseFloor)
	return &Segmenter{params: p}, nil
}

func (s *Segmenter) Params() Params { return s.params }

// Segment estimates noise on r, thresholds it and extracts regions.
func (s *Segmenter) Segment(r l2background.Residual) (Result, error) {
	noise, err := EstimateNoise(r, s.params.Estimator, s.params.NoiseFloor)
	if err != nil {
		return Result{}, err
	}
	mask := Threshold(r, noise, s.params.ThresholdSigma, s.params.Polarity)
	regions, dropped := ExtractRegions(mask, r, noise, s.params.Polarity, s.params.Connectivity, s.params.MinRegionArea)
	res := Result{
		Noise:       noise,
		Mask:        mask,
		Regions:     regions,
		Significant: mask.Count(),
		TooSmall:    dropped,
	}
	tracef("frame %d: %d significant px, %d regions, %d too small", r.FrameIndex, res.Significant, len(regions), dropped)
	if frac := float64(res.Significant) / float64(len(r.Pix)); frac > floodFraction {
		opsf("frame %d: %.1f%% of pixels above threshold; sky changed faster than the background",
			r.FrameIndex, 100*frac)
	}
	return res, nil
}
