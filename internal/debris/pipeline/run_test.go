package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/debris-tracker/internal/debris/l1frames"
	"github.com/banshee-data/debris-tracker/internal/debris/l4classify"
	"github.com/banshee-data/debris-tracker/internal/debris/synthetic"
)

func TestRun_FeedsSinks(t *testing.T) {
	t.Parallel()

	field := synthetic.DefaultField(240, 48, 21)
	seq := synthetic.NewStreakSequence(field, 8)
	seq.StepX = 26
	p := newTestPipeline(t, func(c *Config) {
		c.BufferSize = 5
		c.WarmupMinFrames = 5
	})

	var got []FrameResult
	sink := SinkFunc(func(res FrameResult) error {
		got = append(got, res)
		return nil
	})
	summary, err := Run(context.Background(), seq, p, sink)
	require.NoError(t, err)

	assert.Equal(t, 8, summary.Frames)
	assert.Equal(t, 5, summary.Warming)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 0, summary.Discarded)
	require.Len(t, got, 3)
	for i, res := range got {
		assert.Equal(t, 5+i, res.Frame.Index, "results arrive in frame order")
	}
	assert.Equal(t, 3, summary.Detections[l4classify.LabelDebris])
	assert.False(t, summary.Finished.Before(summary.Started))
	assert.GreaterOrEqual(t, summary.FPS(), 0.0)
}

func TestRun_SkipsMismatchedFrames(t *testing.T) {
	t.Parallel()

	small := synthetic.DefaultField(16, 16, 22)
	big := synthetic.DefaultField(24, 16, 22)
	var frames []l1frames.Frame
	for i := 0; i < 4; i++ {
		f, err := small.Frame(i)
		require.NoError(t, err)
		frames = append(frames, f)
	}
	odd, err := big.Frame(4)
	require.NoError(t, err)
	frames = append(frames[:2], append([]l1frames.Frame{odd}, frames[2:]...)...)

	p := newTestPipeline(t, func(c *Config) {
		c.BufferSize = 3
		c.WarmupMinFrames = 3
	})
	summary, err := Run(context.Background(), l1frames.NewSliceSource(frames...), p)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Frames)
	assert.Equal(t, 1, summary.Discarded)
	assert.Equal(t, 3, summary.Warming)
	assert.Equal(t, 1, summary.Processed)
}

func TestRun_SinkErrorStops(t *testing.T) {
	t.Parallel()

	seq := synthetic.NewStreakSequence(synthetic.DefaultField(64, 32, 23), 10)
	p := newTestPipeline(t, func(c *Config) {
		c.BufferSize = 2
		c.WarmupMinFrames = 2
	})
	boom := errors.New("disk full")
	calls := 0
	_, err := Run(context.Background(), seq, p, SinkFunc(func(FrameResult) error {
		calls++
		return boom
	}))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

type failingSource struct{ err error }

func (s failingSource) Next() (l1frames.Frame, error) { return l1frames.Frame{}, s.err }

func TestRun_SourceError(t *testing.T) {
	t.Parallel()

	bad := errors.New("camera unplugged")
	_, err := Run(context.Background(), failingSource{err: bad}, newTestPipeline(t))
	assert.ErrorIs(t, err, bad)
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	seq := synthetic.NewStreakSequence(synthetic.DefaultField(32, 32, 24), 1000)
	summary, err := Run(ctx, seq, newTestPipeline(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, summary.Frames, 1000)
}
