package l1frames

import (
	"fmt"
	"image"
)

// InsufficientDataError reports that fewer frames are buffered than the
// background estimate needs. It is recoverable: keep pushing frames.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d of %d frames buffered", e.Have, e.Need)
}

// DimensionMismatchError reports a frame or image whose size differs from
// the one it is being combined with. The offending frame should be
// discarded and the caller resynchronised.
type DimensionMismatchError struct {
	Want image.Point
	Got  image.Point
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: want %dx%d, got %dx%d", e.Want.X, e.Want.Y, e.Got.X, e.Got.Y)
}

// CheckSize returns a *DimensionMismatchError when got differs from want.
func CheckSize(want, got image.Point) error {
	if want != got {
		return &DimensionMismatchError{Want: want, Got: got}
	}
	return nil
}
