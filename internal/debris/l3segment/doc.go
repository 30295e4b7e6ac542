// Package l3segment owns Layer 3 (Segmentation) of the debris detection
// model.
//
// Responsibilities: robust noise estimation on residuals, significance
// thresholding, and connected-region extraction with per-region
// intensity moments.
// Key types: Noise, Mask, Region, Segmenter.
//
// Dependency rule: L3 may depend on L1-L2, but never on L4+.
package l3segment
