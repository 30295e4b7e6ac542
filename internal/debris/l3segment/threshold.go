package l3segment

import (
	"math"

	"github.com/banshee-data/debris-tracker/internal/debris/l2background"
)

// Polarity selects which residual excursions count as significant.
type Polarity string

const (
	// PolarityAbsolute flags |r - center| > k*sigma.
	PolarityAbsolute Polarity = "absolute"
	// PolarityPositive flags only r - center > k*sigma; objects brighter
	// than the sky.
	PolarityPositive Polarity = "positive"
)

// Valid reports whether p names a known polarity.
func (p Polarity) Valid() bool {
	return p == PolarityAbsolute || p == PolarityPositive
}

// Mask marks significant pixels, row-major.
type Mask struct {
	Width  int
	Height int
	Bits   []bool
}

func (m Mask) At(x, y int) bool { return m.Bits[y*m.Width+x] }

// Count returns the number of set pixels.
func (m Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// excess returns how far v lies beyond the noise center in the direction
// polarity cares about. Negative means "not significant in this sense".
func excess(v float64, noise Noise, pol Polarity) float64 {
	d := v - noise.Center
	if pol == PolarityPositive {
		return d
	}
	return math.Abs(d)
}

// Threshold marks every residual pixel whose excess strictly exceeds
// k*sigma. With zero sigma and zero floor, only non-zero excess is set.
func Threshold(r l2background.Residual, noise Noise, k float64, pol Polarity) Mask {
	m := Mask{Width: r.Width, Height: r.Height, Bits: make([]bool, len(r.Pix))}
	limit := k * noise.Sigma
	for i, v := range r.Pix {
		if excess(v, noise, pol) > limit {
			m.Bits[i] = true
		}
	}
	return m
}
