package synthetic

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/banshee-data/debris-tracker/internal/debris/l1frames"
	"github.com/banshee-data/debris-tracker/internal/debris/l2background"
)

// Field describes a static sky: a flat level, a linear gradient, fixed
// stars and Gaussian read noise. Everything except the noise is identical
// in every frame.
type Field struct {
	Width    int
	Height   int
	BitDepth int

	SkyLevel  float64 // counts
	GradientX float64 // counts per px along x
	GradientY float64 // counts per px along y
	ReadNoise float64 // per-pixel noise sigma, counts

	Stars []PointSource
	Seed  uint64

	Epoch         time.Time     // timestamp of frame 0
	FrameInterval time.Duration // time between frames
}

// DefaultField mirrors a small 8-bit camera under a dark sky.
func DefaultField(width, height int, seed uint64) Field {
	return Field{
		Width:         width,
		Height:        height,
		BitDepth:      8,
		SkyLevel:      100,
		ReadNoise:     3,
		Seed:          seed,
		Epoch:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		FrameInterval: 100 * time.Millisecond,
	}
}

// RandomStars scatters n stars with fluxes in [minFlux, maxFlux) keeping a
// margin from the edges. The placement depends only on seed.
func RandomStars(n, width, height int, minFlux, maxFlux, sigma float64, seed uint64) []PointSource {
	rng := rand.New(rand.NewPCG(seed, 0x5eed))
	margin := 3 * sigma
	stars := make([]PointSource, n)
	for i := range stars {
		stars[i] = PointSource{
			X:     margin + rng.Float64()*(float64(width)-2*margin),
			Y:     margin + rng.Float64()*(float64(height)-2*margin),
			Flux:  minFlux + rng.Float64()*(maxFlux-minFlux),
			Sigma: sigma,
		}
	}
	return stars
}

func (f Field) validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("field dimensions must be positive, got %dx%d", f.Width, f.Height)
	}
	if f.BitDepth < 1 || f.BitDepth > l1frames.MaxBitDepth {
		return fmt.Errorf("field bit depth must be in [1, %d], got %d", l1frames.MaxBitDepth, f.BitDepth)
	}
	if f.ReadNoise < 0 {
		return fmt.Errorf("field read noise must be non-negative, got %f", f.ReadNoise)
	}
	return nil
}

// Background renders the noiseless sky with its stars.
func (f Field) Background() l2background.Image {
	img := l2background.NewImage(f.Width, f.Height)
	for y := 0; y < f.Height; y++ {
		row := f.SkyLevel + f.GradientY*float64(y)
		for x := 0; x < f.Width; x++ {
			img.Pix[y*f.Width+x] = row + f.GradientX*float64(x)
		}
	}
	for _, s := range f.Stars {
		s.Render(&img)
	}
	return img
}

// Frame renders frame index with noise and the given transients, then
// quantises to the field bit depth. The same (seed, index, injections)
// always produce the same frame.
func (f Field) Frame(index int, injections ...Injection) (l1frames.Frame, error) {
	if err := f.validate(); err != nil {
		return l1frames.Frame{}, err
	}
	img := f.Background()
	for _, inj := range injections {
		inj.Render(&img)
	}
	if f.ReadNoise > 0 {
		rng := rand.New(rand.NewPCG(f.Seed, uint64(index)))
		for i := range img.Pix {
			img.Pix[i] += f.ReadNoise * rng.NormFloat64()
		}
	}
	ts := f.Epoch.Add(time.Duration(index) * f.FrameInterval)
	fr, err := l1frames.NewFrameFromSamples(f.Width, f.Height, f.BitDepth, img.Pix, ts)
	if err != nil {
		return l1frames.Frame{}, err
	}
	return fr.WithIndex(index), nil
}

// Case is one synthetic frame with known ground truth. It satisfies the
// pipeline's synthetic source contract: the frame is differenced against
// the exact noiseless background rather than a median estimate.
type Case struct {
	Field      Field
	Index      int
	Injections []Injection
}

// SyntheticFrame returns the noisy frame and its noiseless background.
func (c Case) SyntheticFrame() (l1frames.Frame, l2background.Image, error) {
	fr, err := c.Field.Frame(c.Index, c.Injections...)
	if err != nil {
		return l1frames.Frame{}, l2background.Image{}, err
	}
	return fr, c.Field.Background(), nil
}
