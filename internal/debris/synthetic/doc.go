// Package synthetic renders star fields with injected point sources and
// streaks. Frames are deterministic functions of the field seed and the
// frame index, so tests and demos can replay identical sequences.
package synthetic
