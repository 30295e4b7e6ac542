package pipeline

import (
	"fmt"
	"math"

	"github.com/banshee-data/debris-tracker/internal/config"
	"github.com/banshee-data/debris-tracker/internal/debris/l3segment"
	"github.com/banshee-data/debris-tracker/internal/debris/l4classify"
)

// Config holds every tunable of the detection pipeline.
type Config struct {
	// Frame buffer and background
	BufferSize                int // frames held for the median (default: 9)
	WarmupMinFrames           int // frames before the first background (default: 5)
	BackgroundRefreshInterval int // re-estimate every K ready frames (default: 1)

	// Segmentation
	ThresholdSigma float64                  // k in center + k*sigma (default: 4.0)
	MinRegionArea  int                      // smaller components are dropped (default: 3)
	Connectivity   l3segment.Connectivity   // 4 or 8 (default: 8)
	NoiseEstimator l3segment.NoiseEstimator // mad, stddev or kappa_sigma (default: mad)
	Polarity       l3segment.Polarity       // absolute or positive (default: absolute)
	NoiseFloor     float64                  // lower bound on sigma (default: 1/sqrt(12))

	// Classification
	ElongationThreshold     float64 // debris axis ratio (default: 2.294, eccentricity 0.9)
	MinStreakArea           int     // minimum debris area in px (default: 15)
	BorderConfidencePenalty float64 // confidence multiplier at frame edges (default: 0.5)
}

// DefaultConfig returns the built-in defaults without reading any file.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		BufferSize:                cfg.GetBufferSize(),
		WarmupMinFrames:           cfg.GetWarmupMinFrames(),
		BackgroundRefreshInterval: cfg.GetBackgroundRefreshInterval(),
		ThresholdSigma:            cfg.GetThresholdSigma(),
		MinRegionArea:             cfg.GetMinRegionArea(),
		Connectivity:              l3segment.Connectivity(cfg.GetConnectivity()),
		NoiseEstimator:            l3segment.NoiseEstimator(cfg.GetNoiseEstimator()),
		Polarity:                  l3segment.Polarity(cfg.GetThresholdPolarity()),
		NoiseFloor:                cfg.GetNoiseFloor(),
		ElongationThreshold:       cfg.GetElongationThreshold(),
		MinStreakArea:             cfg.GetMinStreakArea(),
		BorderConfidencePenalty:   cfg.GetBorderConfidencePenalty(),
	}
}

// Validate returns *InvalidConfigError for the first out-of-range field.
func (c Config) Validate() error {
	invalid := func(field, format string, args ...interface{}) error {
		return &InvalidConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
	}
	switch {
	case c.BufferSize <= 0:
		return invalid("BufferSize", "must be positive, got %d", c.BufferSize)
	case c.WarmupMinFrames < 1 || c.WarmupMinFrames > c.BufferSize:
		return invalid("WarmupMinFrames", "must be in [1, %d], got %d", c.BufferSize, c.WarmupMinFrames)
	case c.BackgroundRefreshInterval < 1:
		return invalid("BackgroundRefreshInterval", "must be at least 1, got %d", c.BackgroundRefreshInterval)
	case !(c.ThresholdSigma > 0) || math.IsInf(c.ThresholdSigma, 1):
		return invalid("ThresholdSigma", "must be positive and finite, got %f", c.ThresholdSigma)
	case c.MinRegionArea < 1:
		return invalid("MinRegionArea", "must be at least 1, got %d", c.MinRegionArea)
	case !c.Connectivity.Valid():
		return invalid("Connectivity", "must be 4 or 8, got %d", c.Connectivity)
	case !c.NoiseEstimator.Valid():
		return invalid("NoiseEstimator", "must be mad, stddev or kappa_sigma, got %q", c.NoiseEstimator)
	case !c.Polarity.Valid():
		return invalid("Polarity", "must be absolute or positive, got %q", c.Polarity)
	case c.NoiseFloor < 0 || math.IsNaN(c.NoiseFloor):
		return invalid("NoiseFloor", "must be non-negative, got %f", c.NoiseFloor)
	case !(c.ElongationThreshold > 1):
		return invalid("ElongationThreshold", "must be greater than 1, got %f", c.ElongationThreshold)
	case c.MinStreakArea < 0:
		return invalid("MinStreakArea", "must be non-negative, got %d", c.MinStreakArea)
	case !(c.BorderConfidencePenalty >= 0 && c.BorderConfidencePenalty <= 1):
		return invalid("BorderConfidencePenalty", "must be in [0, 1], got %f", c.BorderConfidencePenalty)
	}
	return nil
}

func (c Config) segmentParams() l3segment.Params {
	return l3segment.Params{
		ThresholdSigma: c.ThresholdSigma,
		MinRegionArea:  c.MinRegionArea,
		Connectivity:   c.Connectivity,
		Estimator:      c.NoiseEstimator,
		Polarity:       c.Polarity,
		NoiseFloor:     c.NoiseFloor,
	}
}

func (c Config) classifyParams() l4classify.Params {
	return l4classify.Params{
		ElongationThreshold: c.ElongationThreshold,
		MinStreakArea:       c.MinStreakArea,
		ThresholdSigma:      c.ThresholdSigma,
		MinRegionArea:       c.MinRegionArea,
		BorderPenalty:       c.BorderConfidencePenalty,
	}
}
