package l1frames

import (
	"fmt"
	"image"
	"math"
	"time"
)

// MaxBitDepth is the widest sample the Frame can hold.
const MaxBitDepth = 16

// MaxPixels caps width*height for any frame, 16384 x 16384.
const MaxPixels = 1 << 28

// Frame is a single-channel intensity image captured at Timestamp.
// Pixels are stored row-major and never mutated after construction, so a
// Frame can be handed between goroutines and stages without copying.
type Frame struct {
	Index     int
	Timestamp time.Time

	width    int
	height   int
	bitDepth int
	pix      []uint16
}

// NewFrame builds a Frame from row-major samples. The slice is copied.
func NewFrame(width, height, bitDepth int, pix []uint16, ts time.Time) (Frame, error) {
	if err := checkGeometry(width, height, bitDepth); err != nil {
		return Frame{}, err
	}
	if len(pix) != width*height {
		return Frame{}, fmt.Errorf("frame %dx%d needs %d samples, got %d", width, height, width*height, len(pix))
	}
	maxVal := uint16(maxSample(bitDepth))
	own := make([]uint16, len(pix))
	for i, v := range pix {
		if v > maxVal {
			return Frame{}, fmt.Errorf("sample %d at index %d exceeds %d-bit range", v, i, bitDepth)
		}
		own[i] = v
	}
	return Frame{Timestamp: ts, width: width, height: height, bitDepth: bitDepth, pix: own}, nil
}

// NewFrameFromSamples quantises floating-point samples into a Frame,
// rounding to the nearest integer and clipping to the bit-depth range.
func NewFrameFromSamples(width, height, bitDepth int, samples []float64, ts time.Time) (Frame, error) {
	if err := checkGeometry(width, height, bitDepth); err != nil {
		return Frame{}, err
	}
	if len(samples) != width*height {
		return Frame{}, fmt.Errorf("frame %dx%d needs %d samples, got %d", width, height, width*height, len(samples))
	}
	maxVal := maxSample(bitDepth)
	pix := make([]uint16, len(samples))
	for i, v := range samples {
		v = math.Round(v)
		switch {
		case v < 0 || math.IsNaN(v):
			v = 0
		case v > maxVal:
			v = maxVal
		}
		pix[i] = uint16(v)
	}
	return Frame{Timestamp: ts, width: width, height: height, bitDepth: bitDepth, pix: pix}, nil
}

// CheckDimensions rejects non-positive sizes and any width*height that
// overflows or exceeds MaxPixels. Call it before allocating pixel storage.
func CheckDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("frame dimensions must be positive, got %dx%d", width, height)
	}
	if width > MaxPixels/height {
		return fmt.Errorf("frame %dx%d exceeds %d pixels", width, height, MaxPixels)
	}
	return nil
}

func checkGeometry(width, height, bitDepth int) error {
	if err := CheckDimensions(width, height); err != nil {
		return err
	}
	if bitDepth < 1 || bitDepth > MaxBitDepth {
		return fmt.Errorf("bit depth must be in [1, %d], got %d", MaxBitDepth, bitDepth)
	}
	return nil
}

func maxSample(bitDepth int) float64 {
	return float64(uint32(1)<<uint(bitDepth) - 1)
}

func (f Frame) Width() int    { return f.width }
func (f Frame) Height() int   { return f.height }
func (f Frame) BitDepth() int { return f.bitDepth }

// Size returns the frame dimensions as a point (X = width, Y = height).
func (f Frame) Size() image.Point { return image.Pt(f.width, f.height) }

// Bounds returns the pixel rectangle covered by the frame.
func (f Frame) Bounds() image.Rectangle { return image.Rect(0, 0, f.width, f.height) }

// Empty reports whether the frame holds no pixels (the zero Frame).
func (f Frame) Empty() bool { return len(f.pix) == 0 }

// MaxValue is the largest sample the frame's bit depth can represent.
func (f Frame) MaxValue() uint16 { return uint16(maxSample(f.bitDepth)) }

// At returns the sample at column x, row y.
func (f Frame) At(x, y int) uint16 { return f.pix[y*f.width+x] }

// Sample returns the sample at row-major index i.
func (f Frame) Sample(i int) uint16 { return f.pix[i] }

// Len is the number of pixels.
func (f Frame) Len() int { return len(f.pix) }

// Pixels returns a copy of the row-major samples.
func (f Frame) Pixels() []uint16 {
	out := make([]uint16, len(f.pix))
	copy(out, f.pix)
	return out
}

// WithIndex returns the same frame tagged with a sequence index.
// Pixel storage is shared, which is safe because it is never written.
func (f Frame) WithIndex(i int) Frame {
	f.Index = i
	return f
}

// Gray returns an 8-bit grayscale rendering of the frame scaled to its
// bit depth, for previews and annotation.
func (f Frame) Gray() *image.Gray {
	img := image.NewGray(f.Bounds())
	shift := uint(0)
	if f.bitDepth > 8 {
		shift = uint(f.bitDepth - 8)
	}
	for i, v := range f.pix {
		img.Pix[i] = uint8(v >> shift)
	}
	return img
}
