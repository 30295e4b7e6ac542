package l2background

import (
	"github.com/banshee-data/debris-tracker/internal/debris/l1frames"
)

// Residual is a frame minus its background. Values are signed: positive
// where the frame is brighter than the sky model.
type Residual struct {
	Image
	FrameIndex int
}

// Subtract returns frame - background pixel by pixel. The inputs are not
// modified. A size mismatch returns *l1frames.DimensionMismatchError.
func Subtract(frame l1frames.Frame, background Image) (Residual, error) {
	if err := l1frames.CheckSize(background.Size(), frame.Size()); err != nil {
		return Residual{}, err
	}
	out := NewImage(background.Width, background.Height)
	for i, b := range background.Pix {
		out.Pix[i] = float64(frame.Sample(i)) - b
	}
	tracef("frame %d: subtracted %dx%d background", frame.Index, background.Width, background.Height)
	return Residual{Image: out, FrameIndex: frame.Index}, nil
}
