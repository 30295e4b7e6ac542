package synthetic

import (
	"io"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/debris-tracker/internal/debris/l2background"
)

func TestPointSource_ConservesFlux(t *testing.T) {
	t.Parallel()

	img := l2background.NewImage(40, 40)
	PointSource{X: 20.3, Y: 19.6, Flux: 1000, Sigma: 1.5}.Render(&img)

	var total, sx, sy float64
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			v := img.At(x, y)
			total += v
			sx += v * float64(x)
			sy += v * float64(y)
		}
	}
	assert.InDelta(t, 1000, total, 1)
	assert.InDelta(t, 20.3, sx/total, 0.01)
	assert.InDelta(t, 19.6, sy/total, 0.01)
}

func TestStreak_Profile(t *testing.T) {
	t.Parallel()

	img := l2background.NewImage(60, 20)
	s := Streak{X0: 10, Y0: 10, X1: 50, Y1: 10, Brightness: 50, Width: 1}
	s.Render(&img)

	assert.InDelta(t, 50, img.At(30, 10), 1e-9, "centre line carries the peak")
	assert.InDelta(t, 50*math.Exp(-0.5), img.At(30, 11), 1e-9)
	assert.Equal(t, 0.0, img.At(30, 0), "far pixels untouched")
	assert.InDelta(t, 40, s.Length(), 1e-12)
	mx, my := s.Midpoint()
	assert.Equal(t, 30.0, mx)
	assert.Equal(t, 10.0, my)
}

func TestHotPixel_OutOfBoundsIgnored(t *testing.T) {
	t.Parallel()

	img := l2background.NewImage(4, 4)
	HotPixel{X: 9, Y: 1, Value: 100}.Render(&img)
	HotPixel{X: 2, Y: 1, Value: 100}.Render(&img)
	assert.Equal(t, 100.0, img.At(2, 1))
	lo, hi := img.Range()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 100.0, hi)
}

func TestField_FrameIsDeterministic(t *testing.T) {
	t.Parallel()

	f := DefaultField(32, 24, 42)
	f.Stars = RandomStars(3, 32, 24, 500, 900, 1.2, 42)

	a, err := f.Frame(3)
	require.NoError(t, err)
	b, err := f.Frame(3)
	require.NoError(t, err)
	if diff := cmp.Diff(a.Pixels(), b.Pixels()); diff != "" {
		t.Errorf("frame 3 differs between renders (-first +second):\n%s", diff)
	}

	c, err := f.Frame(4)
	require.NoError(t, err)
	assert.NotEqual(t, a.Pixels(), c.Pixels(), "noise must vary with the index")
	assert.Equal(t, 4, c.Index)
	assert.Equal(t, f.Epoch.Add(4*f.FrameInterval), c.Timestamp)
}

func TestField_NoiselessFrameMatchesBackground(t *testing.T) {
	t.Parallel()

	f := DefaultField(16, 8, 1)
	f.ReadNoise = 0
	f.GradientY = 2

	fr, err := f.Frame(0)
	require.NoError(t, err)
	bg := f.Background()
	for i := 0; i < fr.Len(); i++ {
		assert.Equal(t, bg.Pix[i], float64(fr.Sample(i)))
	}
}

func TestField_Validate(t *testing.T) {
	t.Parallel()

	f := DefaultField(0, 8, 1)
	_, err := f.Frame(0)
	assert.Error(t, err)

	f = DefaultField(8, 8, 1)
	f.BitDepth = 20
	_, err = f.Frame(0)
	assert.Error(t, err)
}

func TestCase_SyntheticFrame(t *testing.T) {
	t.Parallel()

	c := Case{
		Field:      DefaultField(20, 20, 3),
		Index:      2,
		Injections: []Injection{HotPixel{X: 5, Y: 5, Value: 120}},
	}
	fr, bg, err := c.SyntheticFrame()
	require.NoError(t, err)
	assert.Equal(t, 2, fr.Index)
	assert.Equal(t, 100.0, bg.At(5, 5), "background excludes injections")
	assert.Greater(t, float64(fr.At(5, 5)), 200.0)
}

func TestStreakSequence(t *testing.T) {
	t.Parallel()

	seq := NewStreakSequence(DefaultField(64, 32, 9), 3)
	st0 := seq.StreakAt(0)
	st2 := seq.StreakAt(2)
	assert.Equal(t, st0.X0+16, st2.X0)
	assert.Equal(t, st0.Y0, st2.Y0)
	assert.True(t, seq.InField(0))
	assert.False(t, seq.InField(10))

	for i := 0; i < 3; i++ {
		f, err := seq.Next()
		require.NoError(t, err)
		assert.Equal(t, i, f.Index)
	}
	_, err := seq.Next()
	assert.ErrorIs(t, err, io.EOF)

	seq.Reset()
	f, err := seq.Next()
	require.NoError(t, err)
	assert.Equal(t, 0, f.Index)
}

func TestRandomStars_StayInside(t *testing.T) {
	t.Parallel()

	stars := RandomStars(50, 100, 80, 10, 20, 2, 7)
	require.Len(t, stars, 50)
	for _, s := range stars {
		assert.GreaterOrEqual(t, s.X, 6.0)
		assert.LessOrEqual(t, s.X, 94.0)
		assert.GreaterOrEqual(t, s.Y, 6.0)
		assert.LessOrEqual(t, s.Y, 74.0)
		assert.GreaterOrEqual(t, s.Flux, 10.0)
		assert.Less(t, s.Flux, 20.0)
	}
	assert.Equal(t, stars, RandomStars(50, 100, 80, 10, 20, 2, 7))
}
