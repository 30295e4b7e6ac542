// Package pipeline provides the frame-by-frame debris detection pipeline
// that orchestrates stages from L1 Frames through L4 Classification.
//
// This package is the composition root: it imports from the layer
// packages (l1frames, l2background, l3segment, l4classify) but none of
// those packages import pipeline/. Persistence, export and monitoring
// attach as Sinks and live in their own packages.
package pipeline
