// Package l1frames owns Layer 1 (Frames) of the debris detection model.
//
// Responsibilities: the immutable Frame value, the bounded FrameBuffer used
// for background estimation, and the frame source contract with its
// slice, directory and FITS implementations.
// Key types: Frame, Buffer, Source.
//
// Dependency rule: L1 depends on nothing else in internal/debris.
// Camera drivers and session acquisition live outside this package; they
// hand finished frames over through Source.
package l1frames
