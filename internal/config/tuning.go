package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for detection tuning.
// Every field is optional; the Get* accessors fall back to the built-in
// defaults, so a partial file only overrides what it names.
type TuningConfig struct {
	// Frame buffer and background
	BufferSize                *int `json:"buffer_size,omitempty" yaml:"buffer_size,omitempty"`
	WarmupMinFrames           *int `json:"warmup_min_frames,omitempty" yaml:"warmup_min_frames,omitempty"`
	BackgroundRefreshInterval *int `json:"background_refresh_interval,omitempty" yaml:"background_refresh_interval,omitempty"`

	// Segmentation
	ThresholdSigma    *float64 `json:"threshold_sigma,omitempty" yaml:"threshold_sigma,omitempty"`
	MinRegionArea     *int     `json:"min_region_area,omitempty" yaml:"min_region_area,omitempty"`
	Connectivity      *int     `json:"connectivity,omitempty" yaml:"connectivity,omitempty"`
	NoiseEstimator    *string  `json:"noise_estimator,omitempty" yaml:"noise_estimator,omitempty"`
	ThresholdPolarity *string  `json:"threshold_polarity,omitempty" yaml:"threshold_polarity,omitempty"`
	NoiseFloor        *float64 `json:"noise_floor,omitempty" yaml:"noise_floor,omitempty"`

	// Classification
	ElongationThreshold     *float64 `json:"elongation_threshold,omitempty" yaml:"elongation_threshold,omitempty"`
	MinStreakArea           *int     `json:"min_streak_area,omitempty" yaml:"min_streak_area,omitempty"`
	BorderConfidencePenalty *float64 `json:"border_confidence_penalty,omitempty" yaml:"border_confidence_penalty,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	c := EmptyTuningConfig()
	return &TuningConfig{
		BufferSize:                ptrInt(c.GetBufferSize()),
		WarmupMinFrames:           ptrInt(c.GetWarmupMinFrames()),
		BackgroundRefreshInterval: ptrInt(c.GetBackgroundRefreshInterval()),
		ThresholdSigma:            ptrFloat64(c.GetThresholdSigma()),
		MinRegionArea:             ptrInt(c.GetMinRegionArea()),
		Connectivity:              ptrInt(c.GetConnectivity()),
		NoiseEstimator:            ptrString(c.GetNoiseEstimator()),
		ThresholdPolarity:         ptrString(c.GetThresholdPolarity()),
		NoiseFloor:                ptrFloat64(c.GetNoiseFloor()),
		ElongationThreshold:       ptrFloat64(c.GetElongationThreshold()),
		MinStreakArea:             ptrInt(c.GetMinStreakArea()),
		BorderConfidencePenalty:   ptrFloat64(c.GetBorderConfidencePenalty()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON or YAML file.
// The file must have a .json, .yaml or .yml extension and be under the max
// file size. Fields omitted from the file fall back to their defaults, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,             // from cmd/debris-detect/
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/debris/pipeline/
		"../../../../" + DefaultConfigPath,    // from internal/debris/storage/sqlite/
		"../../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid. Only fields
// that are set are checked individually; cross-field rules use the
// effective values.
func (c *TuningConfig) Validate() error {
	if c.BufferSize != nil && *c.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be positive, got %d", *c.BufferSize)
	}
	if c.WarmupMinFrames != nil && *c.WarmupMinFrames < 1 {
		return fmt.Errorf("warmup_min_frames must be at least 1, got %d", *c.WarmupMinFrames)
	}
	if c.GetWarmupMinFrames() > c.GetBufferSize() {
		return fmt.Errorf("warmup_min_frames (%d) must not exceed buffer_size (%d)", c.GetWarmupMinFrames(), c.GetBufferSize())
	}
	if c.BackgroundRefreshInterval != nil && *c.BackgroundRefreshInterval < 1 {
		return fmt.Errorf("background_refresh_interval must be at least 1, got %d", *c.BackgroundRefreshInterval)
	}
	if c.ThresholdSigma != nil && !(*c.ThresholdSigma > 0) {
		return fmt.Errorf("threshold_sigma must be positive, got %f", *c.ThresholdSigma)
	}
	if c.MinRegionArea != nil && *c.MinRegionArea < 1 {
		return fmt.Errorf("min_region_area must be at least 1, got %d", *c.MinRegionArea)
	}
	if c.Connectivity != nil && *c.Connectivity != 4 && *c.Connectivity != 8 {
		return fmt.Errorf("connectivity must be 4 or 8, got %d", *c.Connectivity)
	}
	if c.NoiseEstimator != nil {
		switch *c.NoiseEstimator {
		case "mad", "stddev", "kappa_sigma":
		default:
			return fmt.Errorf("noise_estimator must be one of mad, stddev, kappa_sigma, got %q", *c.NoiseEstimator)
		}
	}
	if c.ThresholdPolarity != nil && *c.ThresholdPolarity != "absolute" && *c.ThresholdPolarity != "positive" {
		return fmt.Errorf("threshold_polarity must be absolute or positive, got %q", *c.ThresholdPolarity)
	}
	if c.NoiseFloor != nil && (*c.NoiseFloor < 0 || math.IsNaN(*c.NoiseFloor)) {
		return fmt.Errorf("noise_floor must be non-negative, got %f", *c.NoiseFloor)
	}
	if c.ElongationThreshold != nil && !(*c.ElongationThreshold > 1) {
		return fmt.Errorf("elongation_threshold must be greater than 1, got %f", *c.ElongationThreshold)
	}
	if c.MinStreakArea != nil && *c.MinStreakArea < 0 {
		return fmt.Errorf("min_streak_area must be non-negative, got %d", *c.MinStreakArea)
	}
	if c.BorderConfidencePenalty != nil {
		if p := *c.BorderConfidencePenalty; p < 0 || p > 1 || math.IsNaN(p) {
			return fmt.Errorf("border_confidence_penalty must be between 0 and 1, got %f", p)
		}
	}
	return nil
}

// GetBufferSize returns the buffer_size value or the default.
func (c *TuningConfig) GetBufferSize() int {
	if c.BufferSize == nil {
		return 9
	}
	return *c.BufferSize
}

// GetWarmupMinFrames returns the warmup_min_frames value or the default.
// The default never exceeds the buffer size.
func (c *TuningConfig) GetWarmupMinFrames() int {
	if c.WarmupMinFrames == nil {
		return min(5, c.GetBufferSize())
	}
	return *c.WarmupMinFrames
}

// GetBackgroundRefreshInterval returns the background_refresh_interval value or the default.
func (c *TuningConfig) GetBackgroundRefreshInterval() int {
	if c.BackgroundRefreshInterval == nil {
		return 1 // re-estimate every frame
	}
	return *c.BackgroundRefreshInterval
}

// GetThresholdSigma returns the threshold_sigma value or the default.
func (c *TuningConfig) GetThresholdSigma() float64 {
	if c.ThresholdSigma == nil {
		return 4.0
	}
	return *c.ThresholdSigma
}

// GetMinRegionArea returns the min_region_area value or the default.
func (c *TuningConfig) GetMinRegionArea() int {
	if c.MinRegionArea == nil {
		return 3
	}
	return *c.MinRegionArea
}

// GetConnectivity returns the connectivity value or the default.
func (c *TuningConfig) GetConnectivity() int {
	if c.Connectivity == nil {
		return 8
	}
	return *c.Connectivity
}

// GetNoiseEstimator returns the noise_estimator value or the default.
func (c *TuningConfig) GetNoiseEstimator() string {
	if c.NoiseEstimator == nil || *c.NoiseEstimator == "" {
		return "mad"
	}
	return *c.NoiseEstimator
}

// GetThresholdPolarity returns the threshold_polarity value or the default.
func (c *TuningConfig) GetThresholdPolarity() string {
	if c.ThresholdPolarity == nil || *c.ThresholdPolarity == "" {
		return "absolute"
	}
	return *c.ThresholdPolarity
}

// GetNoiseFloor returns the noise_floor value or the default.
func (c *TuningConfig) GetNoiseFloor() float64 {
	if c.NoiseFloor == nil {
		return 1 / math.Sqrt(12) // quantisation noise of an integer sample
	}
	return *c.NoiseFloor
}

// GetElongationThreshold returns the elongation_threshold value or the default.
func (c *TuningConfig) GetElongationThreshold() float64 {
	if c.ElongationThreshold == nil {
		return 1 / math.Sqrt(1-0.9*0.9) // axis ratio of an ellipse with eccentricity 0.9
	}
	return *c.ElongationThreshold
}

// GetMinStreakArea returns the min_streak_area value or the default.
func (c *TuningConfig) GetMinStreakArea() int {
	if c.MinStreakArea == nil {
		return 15
	}
	return *c.MinStreakArea
}

// GetBorderConfidencePenalty returns the border_confidence_penalty value or the default.
func (c *TuningConfig) GetBorderConfidencePenalty() float64 {
	if c.BorderConfidencePenalty == nil {
		return 0.5
	}
	return *c.BorderConfidencePenalty
}
