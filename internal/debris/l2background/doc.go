// Package l2background owns Layer 2 (Background) of the debris detection
// model.
//
// Responsibilities: estimating the static sky from the buffered frames
// and differencing each new frame against it.
// Key types: Image, Residual, Estimator.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
package l2background
