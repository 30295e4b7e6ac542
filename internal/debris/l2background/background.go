package l2background

import (
	"github.com/banshee-data/debris-tracker/internal/debris/l1frames"
	"github.com/banshee-data/debris-tracker/internal/debris/robust"
)

// Estimator computes the per-pixel temporal median of buffered frames.
// Moving objects occupy any pixel for only a few frames, so the median
// rejects them while keeping stars and the sky gradient. The estimator
// reuses a scratch column between calls and is not safe for concurrent use.
type Estimator struct {
	column []float64
}

// NewEstimator returns a median background estimator.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Estimate returns the median background of buf. It fails with
// *l1frames.InsufficientDataError until buf holds its minimum frame count.
func (e *Estimator) Estimate(buf *l1frames.Buffer) (Image, error) {
	if err := buf.Require(); err != nil {
		return Image{}, err
	}
	return e.EstimateFrames(buf.Snapshot())
}

// EstimateFrames returns the per-pixel median of frames, which must all
// share one size. An even frame count averages the two middle samples.
func (e *Estimator) EstimateFrames(frames []l1frames.Frame) (Image, error) {
	if len(frames) == 0 {
		return Image{}, &l1frames.InsufficientDataError{Have: 0, Need: 1}
	}
	size, depth := frames[0].Size(), frames[0].BitDepth()
	for _, f := range frames[1:] {
		if err := l1frames.CheckSize(size, f.Size()); err != nil {
			return Image{}, err
		}
		if f.BitDepth() != depth {
			opsf("frame %d is %d-bit but frame %d is %d-bit; median mixes sample scales",
				f.Index, f.BitDepth(), frames[0].Index, depth)
			depth = f.BitDepth()
		}
	}

	n := len(frames)
	if cap(e.column) < n {
		e.column = make([]float64, n)
	}
	col := e.column[:n]

	bg := NewImage(size.X, size.Y)
	for i := range bg.Pix {
		for j, f := range frames {
			col[j] = float64(f.Sample(i))
		}
		bg.Pix[i] = robust.MedianInPlace(col)
	}
	diagf("estimated %dx%d background from %d frames", size.X, size.Y, n)
	return bg, nil
}
