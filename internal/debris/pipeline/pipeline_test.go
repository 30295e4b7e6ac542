package pipeline

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/debris-tracker/internal/debris/l1frames"
	"github.com/banshee-data/debris-tracker/internal/debris/l3segment"
	"github.com/banshee-data/debris-tracker/internal/debris/l4classify"
	"github.com/banshee-data/debris-tracker/internal/debris/synthetic"
)

func newTestPipeline(t *testing.T, mutate ...func(*Config)) *Pipeline {
	t.Helper()
	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

func TestSynthetic_ZeroResidualHasNoDetections(t *testing.T) {
	t.Parallel()

	field := synthetic.DefaultField(48, 48, 1)
	field.ReadNoise = 0
	p := newTestPipeline(t)

	res, err := p.ProcessSynthetic(synthetic.Case{Field: field})
	require.NoError(t, err)
	assert.True(t, res.Synthetic)
	assert.Empty(t, res.Detections)
	assert.Equal(t, 0, res.Metrics.SignificantPixels)
	assert.Equal(t, StateIdle, p.State(), "synthetic mode leaves the state machine alone")
}

func TestSynthetic_PointSourceIsOneStar(t *testing.T) {
	t.Parallel()

	field := synthetic.DefaultField(64, 64, 2)
	src := synthetic.PointSource{X: 32.3, Y: 20.7, Flux: 1200, Sigma: 1.2}
	p := newTestPipeline(t)

	res, err := p.ProcessSynthetic(synthetic.Case{Field: field, Injections: []synthetic.Injection{src}})
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)
	d := res.Detections[0]
	assert.Equal(t, l4classify.LabelStar, d.Label)
	assert.Less(t, math.Hypot(d.CentroidX-src.X, d.CentroidY-src.Y), 1.0)
	assert.Less(t, d.Elongation, 1.5)
	assert.Greater(t, d.Confidence, 0.5)
}

func TestSynthetic_StreakIsOneDebris(t *testing.T) {
	t.Parallel()

	field := synthetic.DefaultField(64, 64, 3)
	streak := synthetic.Streak{X0: 10, Y0: 40, X1: 54, Y1: 44, Brightness: 60, Width: 1}
	p := newTestPipeline(t)

	res, err := p.ProcessSynthetic(synthetic.Case{Field: field, Injections: []synthetic.Injection{streak}})
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)
	d := res.Detections[0]
	assert.Equal(t, l4classify.LabelDebris, d.Label)
	assert.Greater(t, d.Elongation, p.Config().ElongationThreshold)
	mx, my := streak.Midpoint()
	assert.Less(t, math.Hypot(d.CentroidX-mx, d.CentroidY-my), 1.5)
	assert.InDelta(t, 5.2, d.OrientationDeg, 1.5)
	assert.Equal(t, 1, res.Metrics.Debris)
}

func TestSynthetic_PureNoiseIsQuiet(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t)
	for seed := uint64(1); seed <= 5; seed++ {
		field := synthetic.DefaultField(128, 128, seed)
		field.SkyLevel = 120
		res, err := p.ProcessSynthetic(synthetic.Case{Field: field})
		require.NoError(t, err)
		assert.Empty(t, res.Detections, "seed %d", seed)
	}
}

func TestSynthetic_HotPixelIsDropped(t *testing.T) {
	t.Parallel()

	field := synthetic.DefaultField(64, 64, 4)
	p := newTestPipeline(t)
	res, err := p.ProcessSynthetic(synthetic.Case{
		Field:      field,
		Injections: []synthetic.Injection{synthetic.HotPixel{X: 30, Y: 30, Value: 150}},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Detections)
	assert.GreaterOrEqual(t, res.Metrics.TooSmall, 1)
}

func TestProcess_WarmsUpForBufferSize(t *testing.T) {
	t.Parallel()

	const n = 6
	p := newTestPipeline(t, func(c *Config) {
		c.BufferSize = n
		c.WarmupMinFrames = n
	})
	field := synthetic.DefaultField(32, 32, 5)
	assert.Equal(t, StateIdle, p.State())

	for i := 0; i < n; i++ {
		f, err := field.Frame(i)
		require.NoError(t, err)
		res, err := p.Process(f)
		var insufficient *InsufficientDataError
		require.True(t, errors.As(err, &insufficient), "frame %d: expected InsufficientDataError, got %v", i, err)
		assert.Equal(t, i, insufficient.Have)
		assert.Equal(t, n, insufficient.Need)
		assert.Equal(t, StateWarming, res.State)
		assert.Equal(t, i+1, p.Buffered())
		assert.True(t, IsWarming(err))
	}

	f, err := field.Frame(n)
	require.NoError(t, err)
	res, err := p.Process(f)
	require.NoError(t, err)
	assert.Equal(t, StateReady, res.State)
	assert.Equal(t, StateReady, p.State())
	assert.True(t, res.Metrics.BackgroundRefreshed)
	_, ok := p.Background()
	assert.True(t, ok)
}

func TestProcess_DimensionMismatchLeavesState(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, func(c *Config) {
		c.BufferSize = 3
		c.WarmupMinFrames = 3
	})
	small := synthetic.DefaultField(16, 16, 6)
	for i := 0; i < 2; i++ {
		f, err := small.Frame(i)
		require.NoError(t, err)
		_, _ = p.Process(f)
	}

	big, err := synthetic.DefaultField(20, 16, 6).Frame(2)
	require.NoError(t, err)
	_, err = p.Process(big)
	var mismatch *DimensionMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 2, p.Buffered())
	assert.Equal(t, StateWarming, p.State())

	for i := 2; i < 4; i++ {
		f, err := small.Frame(i)
		require.NoError(t, err)
		_, err = p.Process(f)
		if i < 3 {
			assert.True(t, IsWarming(err))
		} else {
			assert.NoError(t, err)
		}
	}
	assert.Equal(t, 3, p.Buffered())
}

func TestProcess_SingleWarmupFrameStillWarms(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, func(c *Config) {
		c.BufferSize = 3
		c.WarmupMinFrames = 1
	})
	field := synthetic.DefaultField(16, 16, 14)

	f, err := field.Frame(0)
	require.NoError(t, err)
	res, err := p.Process(f)
	assert.True(t, IsWarming(err))
	assert.Equal(t, StateWarming, res.State)
	assert.Equal(t, StateWarming, p.State(), "the first frame always passes through warming")

	f, err = field.Frame(1)
	require.NoError(t, err)
	res, err = p.Process(f)
	require.NoError(t, err)
	assert.Equal(t, StateReady, res.State)
	assert.True(t, res.Metrics.BackgroundRefreshed)
}

func TestProcess_FrameExcludedFromOwnBackground(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, func(c *Config) {
		c.BufferSize = 2
		c.WarmupMinFrames = 2
	})
	field := synthetic.DefaultField(8, 8, 15)
	field.ReadNoise = 0
	for i := 0; i < 2; i++ {
		f, err := field.Frame(i)
		require.NoError(t, err)
		_, _ = p.Process(f)
	}

	// Had the lit frame joined its own median the background would sit
	// halfway up the spike.
	lit, err := field.Frame(2, synthetic.HotPixel{X: 4, Y: 4, Value: 100})
	require.NoError(t, err)
	res, err := p.Process(lit)
	require.NoError(t, err)
	assert.Equal(t, field.SkyLevel, res.Background.At(4, 4))
	assert.Equal(t, 100.0, res.Residual.At(4, 4))
	assert.Equal(t, 2, p.Buffered())
}

// Static sky with read noise only must never produce a detection on the
// live path, whatever the seed or how many frames the background holds.
func TestProcess_QuietSkyHasNoDetections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		readNoise float64
		stars     bool
	}{
		{"pure noise", 3, false},
		{"static stars", 3, true},
		{"faint noise", 2.2, false},
		{"zero residual", 0, false},
		{"zero residual with stars", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			for seed := uint64(1); seed <= 30; seed++ {
				field := synthetic.DefaultField(128, 128, seed)
				field.ReadNoise = tt.readNoise
				if tt.stars {
					field.Stars = synthetic.RandomStars(10, 128, 128, 600, 1200, 1.2, seed)
				}
				// Default config: the buffer fills from WarmupMinFrames to
				// BufferSize, so backgrounds come from odd and even counts.
				p := newTestPipeline(t)
				cfg := p.Config()
				for i := 0; i < cfg.BufferSize+3; i++ {
					f, err := field.Frame(i)
					require.NoError(t, err)
					held := p.Buffered()
					res, err := p.Process(f)
					if i < cfg.WarmupMinFrames {
						require.True(t, IsWarming(err), "seed %d frame %d: %v", seed, i, err)
						continue
					}
					require.NoError(t, err)
					assert.Empty(t, res.Detections, "seed %d frame %d, background of %d frames, sigma %.3f",
						seed, i, held, res.Noise.Sigma)
					if tt.readNoise == 0 {
						assert.Equal(t, 0, res.Metrics.SignificantPixels, "seed %d frame %d", seed, i)
					} else {
						assert.Greater(t, res.Noise.Sigma, 0.9*tt.readNoise, "seed %d frame %d", seed, i)
					}
				}
			}
		})
	}
}

func TestProcess_DetectsMovingStreak(t *testing.T) {
	t.Parallel()

	field := synthetic.DefaultField(300, 64, 7)
	field.Stars = synthetic.RandomStars(8, 300, 64, 600, 1200, 1.2, 7)
	seq := synthetic.NewStreakSequence(field, 10)
	// Move further than the streak length so no pixel is lit in more than
	// a couple of buffered frames.
	seq.StepX = 26
	p := newTestPipeline(t, func(c *Config) {
		c.BufferSize = 7
		c.WarmupMinFrames = 7
	})

	var ready []FrameResult
	for i := 0; i < seq.Frames; i++ {
		f, err := seq.Next()
		require.NoError(t, err)
		res, err := p.Process(f)
		if IsWarming(err) {
			continue
		}
		require.NoError(t, err)
		ready = append(ready, res)
	}
	require.Len(t, ready, seq.Frames-p.Config().BufferSize)

	for _, res := range ready {
		if !seq.InField(res.Frame.Index) {
			continue
		}
		assert.Equal(t, 1, res.Count(l4classify.LabelDebris), "frame %d", res.Frame.Index)
		assert.Equal(t, 0, res.Count(l4classify.LabelStar), "static stars must cancel in frame %d", res.Frame.Index)
	}
}

func TestProcess_RefreshInterval(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, func(c *Config) {
		c.BufferSize = 3
		c.WarmupMinFrames = 3
		c.BackgroundRefreshInterval = 3
	})
	field := synthetic.DefaultField(16, 16, 8)
	var refreshed []bool
	for i := 0; i < 9; i++ {
		f, err := field.Frame(i)
		require.NoError(t, err)
		res, err := p.Process(f)
		if IsWarming(err) {
			continue
		}
		require.NoError(t, err)
		refreshed = append(refreshed, res.Metrics.BackgroundRefreshed)
	}
	assert.Equal(t, []bool{true, false, false, true, false, false}, refreshed)
}

func TestPipeline_Deterministic(t *testing.T) {
	t.Parallel()

	run := func() [][]l4classify.Detection {
		field := synthetic.DefaultField(96, 48, 11)
		field.Stars = synthetic.RandomStars(4, 96, 48, 600, 1200, 1.2, 11)
		seq := synthetic.NewStreakSequence(field, 12)
		p := newTestPipeline(t)
		var out [][]l4classify.Detection
		for {
			f, err := seq.Next()
			if err != nil {
				break
			}
			res, err := p.Process(f)
			if IsWarming(err) {
				continue
			}
			require.NoError(t, err)
			out = append(out, res.Detections)
		}
		return out
	}

	first, second := run(), run()
	require.NotEmpty(t, first)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("detections differ between identical runs (-first +second):\n%s", diff)
	}
}

func TestPipeline_Reset(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, func(c *Config) {
		c.BufferSize = 2
		c.WarmupMinFrames = 2
	})
	field := synthetic.DefaultField(8, 8, 12)
	for i := 0; i < 3; i++ {
		f, err := field.Frame(i)
		require.NoError(t, err)
		_, _ = p.Process(f)
	}
	require.Equal(t, StateReady, p.State())

	p.Reset()
	assert.Equal(t, StateIdle, p.State())
	assert.Equal(t, 0, p.Buffered())
	_, ok := p.Background()
	assert.False(t, ok)

	// A new frame size is accepted after a reset.
	f, err := synthetic.DefaultField(12, 8, 12).Frame(0)
	require.NoError(t, err)
	_, err = p.Process(f)
	assert.True(t, IsWarming(err))
}

type fixedClassifier struct{ label l4classify.Label }

func (c fixedClassifier) Classify(_ l3segment.Region, _ l3segment.Noise) l4classify.Detection {
	return l4classify.Detection{Label: c.label, Model: "fixed"}
}

func TestWithClassifier(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	p, err := New(cfg, WithClassifier(fixedClassifier{label: l4classify.LabelNoise}))
	require.NoError(t, err)

	field := synthetic.DefaultField(32, 32, 13)
	res, err := p.ProcessSynthetic(synthetic.Case{
		Field:      field,
		Injections: []synthetic.Injection{synthetic.PointSource{X: 16, Y: 16, Flux: 800, Sigma: 1}},
	})
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)
	assert.Equal(t, "fixed", res.Detections[0].Model)
	assert.Equal(t, 1, res.Metrics.Noise)
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		field  string
		mutate func(*Config)
	}{
		{"BufferSize", func(c *Config) { c.BufferSize = 0 }},
		{"WarmupMinFrames", func(c *Config) { c.WarmupMinFrames = c.BufferSize + 1 }},
		{"WarmupMinFrames", func(c *Config) { c.WarmupMinFrames = 0 }},
		{"BackgroundRefreshInterval", func(c *Config) { c.BackgroundRefreshInterval = 0 }},
		{"ThresholdSigma", func(c *Config) { c.ThresholdSigma = -1 }},
		{"ThresholdSigma", func(c *Config) { c.ThresholdSigma = math.NaN() }},
		{"MinRegionArea", func(c *Config) { c.MinRegionArea = 0 }},
		{"Connectivity", func(c *Config) { c.Connectivity = 6 }},
		{"NoiseEstimator", func(c *Config) { c.NoiseEstimator = "mean" }},
		{"Polarity", func(c *Config) { c.Polarity = "negative" }},
		{"NoiseFloor", func(c *Config) { c.NoiseFloor = -0.5 }},
		{"ElongationThreshold", func(c *Config) { c.ElongationThreshold = 1 }},
		{"MinStreakArea", func(c *Config) { c.MinStreakArea = -2 }},
		{"BorderConfidencePenalty", func(c *Config) { c.BorderConfidencePenalty = 2 }},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(&cfg)
		_, err := New(cfg)
		var invalid *InvalidConfigError
		if assert.True(t, errors.As(err, &invalid), "%s: expected InvalidConfigError, got %v", tt.field, err) {
			assert.Equal(t, tt.field, invalid.Field)
		}
	}
}

func TestProcess_EmptyFrame(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t)
	_, err := p.Process(l1frames.Frame{})
	assert.Error(t, err)
	assert.False(t, IsWarming(err))
}
