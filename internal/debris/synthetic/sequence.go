package synthetic

import (
	"io"

	"github.com/banshee-data/debris-tracker/internal/debris/l1frames"
)

// StreakSequence is a frame source where one streak crosses a static field,
// shifting by (StepX, StepY) each frame. Frames after the streak leaves the
// field show only the sky.
type StreakSequence struct {
	Field  Field
	Streak Streak // position in frame 0
	StepX  float64
	StepY  float64
	Frames int

	next int
}

// NewStreakSequence returns a horizontal streak that starts near the left
// edge and moves 8 px right per frame.
func NewStreakSequence(field Field, frames int) *StreakSequence {
	y := float64(field.Height) / 2
	return &StreakSequence{
		Field:  field,
		Streak: Streak{X0: 10, Y0: y, X1: 34, Y1: y + 2, Brightness: 20 * max(field.ReadNoise, 1), Width: 0.8},
		StepX:  8,
		Frames: frames,
	}
}

var _ l1frames.Source = (*StreakSequence)(nil)

// StreakAt returns the streak geometry in frame index.
func (s *StreakSequence) StreakAt(index int) Streak {
	st := s.Streak
	dx, dy := s.StepX*float64(index), s.StepY*float64(index)
	st.X0 += dx
	st.X1 += dx
	st.Y0 += dy
	st.Y1 += dy
	return st
}

// InField reports whether any part of the streak is inside frame index.
func (s *StreakSequence) InField(index int) bool {
	st := s.StreakAt(index)
	w, h := float64(s.Field.Width), float64(s.Field.Height)
	inside := func(x, y float64) bool { return x >= 0 && y >= 0 && x < w && y < h }
	return inside(st.X0, st.Y0) || inside(st.X1, st.Y1)
}

func (s *StreakSequence) Next() (l1frames.Frame, error) {
	if s.next >= s.Frames {
		return l1frames.Frame{}, io.EOF
	}
	i := s.next
	s.next++
	return s.Field.Frame(i, s.StreakAt(i))
}

// Reset rewinds the sequence to frame 0.
func (s *StreakSequence) Reset() { s.next = 0 }
