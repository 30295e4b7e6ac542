package l1frames

import (
	"fmt"
	"image"
)

// Buffer is a bounded FIFO of the most recent frames. Once Cap frames are
// held, each Push evicts the oldest. All frames share one size; a frame of
// a different size is rejected without touching the buffered contents.
type Buffer struct {
	capacity  int
	minFrames int

	frames []Frame // ring storage
	start  int     // index of the oldest frame
	count  int
	size   image.Point
}

// NewBuffer creates a buffer holding up to capacity frames that reports
// itself ready once minFrames have been pushed.
func NewBuffer(capacity, minFrames int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("buffer capacity must be positive, got %d", capacity)
	}
	if minFrames < 1 || minFrames > capacity {
		return nil, fmt.Errorf("buffer minFrames must be in [1, %d], got %d", capacity, minFrames)
	}
	return &Buffer{
		capacity:  capacity,
		minFrames: minFrames,
		frames:    make([]Frame, capacity),
	}, nil
}

// Push appends f, evicting the oldest frame when full. A frame whose size
// differs from the buffered frames returns *DimensionMismatchError and
// leaves the buffer unchanged.
func (b *Buffer) Push(f Frame) error {
	if err := b.Accepts(f); err != nil {
		return err
	}
	if b.count == 0 {
		b.size = f.Size()
	}

	if b.count < b.capacity {
		b.frames[(b.start+b.count)%b.capacity] = f
		b.count++
	} else {
		b.frames[b.start] = f
		b.start = (b.start + 1) % b.capacity
		tracef("evicted oldest frame, buffer holds %d", b.count)
	}
	return nil
}

// Accepts reports whether Push would take f, without pushing it.
func (b *Buffer) Accepts(f Frame) error {
	if f.Empty() {
		return fmt.Errorf("cannot buffer an empty frame")
	}
	if b.count > 0 {
		return CheckSize(b.size, f.Size())
	}
	return nil
}

// Snapshot returns the buffered frames, oldest first. The returned slice is
// a fresh copy; the frames themselves are immutable.
func (b *Buffer) Snapshot() []Frame {
	out := make([]Frame, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.frames[(b.start+i)%b.capacity]
	}
	return out
}

// Require returns *InsufficientDataError until MinFrames have been pushed.
func (b *Buffer) Require() error {
	if b.count < b.minFrames {
		return &InsufficientDataError{Have: b.count, Need: b.minFrames}
	}
	return nil
}

// Ready reports whether enough frames are buffered for a background.
func (b *Buffer) Ready() bool { return b.count >= b.minFrames }

func (b *Buffer) Len() int       { return b.count }
func (b *Buffer) Cap() int       { return b.capacity }
func (b *Buffer) MinFrames() int { return b.minFrames }

// Size is the common frame size, or the zero point when empty.
func (b *Buffer) Size() image.Point {
	if b.count == 0 {
		return image.Point{}
	}
	return b.size
}

// Reset drops all buffered frames.
func (b *Buffer) Reset() {
	for i := range b.frames {
		b.frames[i] = Frame{}
	}
	b.start = 0
	b.count = 0
	b.size = image.Point{}
}
