package l2background

import (
	"fmt"
	"image"
	"math"
)

// Image is a row-major float64 raster. It carries background estimates,
// residuals and noiseless synthetic backgrounds.
type Image struct {
	Width  int
	Height int
	Pix    []float64
}

// NewImage allocates a zero-filled Image.
func NewImage(width, height int) Image {
	return Image{Width: width, Height: height, Pix: make([]float64, width*height)}
}

// ImageFrom wraps pix after checking its length against the dimensions.
func ImageFrom(width, height int, pix []float64) (Image, error) {
	if width <= 0 || height <= 0 {
		return Image{}, fmt.Errorf("image dimensions must be positive, got %dx%d", width, height)
	}
	if len(pix) != width*height {
		return Image{}, fmt.Errorf("image %dx%d needs %d samples, got %d", width, height, width*height, len(pix))
	}
	return Image{Width: width, Height: height, Pix: pix}, nil
}

func (m Image) At(x, y int) float64 { return m.Pix[y*m.Width+x] }

func (m Image) Size() image.Point { return image.Pt(m.Width, m.Height) }

func (m Image) Bounds() image.Rectangle { return image.Rect(0, 0, m.Width, m.Height) }

// Empty reports whether the image has no pixels.
func (m Image) Empty() bool { return len(m.Pix) == 0 }

// Clone returns a deep copy.
func (m Image) Clone() Image {
	out := Image{Width: m.Width, Height: m.Height, Pix: make([]float64, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return out
}

// Range returns the minimum and maximum finite sample.
func (m Image) Range() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range m.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Gray renders the image onto 8 bits by linearly mapping [lo, hi].
func (m Image) Gray(lo, hi float64) *image.Gray {
	g := image.NewGray(m.Bounds())
	span := hi - lo
	for i, v := range m.Pix {
		if span <= 0 {
			continue
		}
		s := (v - lo) / span * 255
		switch {
		case s < 0:
			s = 0
		case s > 255:
			s = 255
		}
		g.Pix[i] = uint8(s + 0.5)
	}
	return g
}
