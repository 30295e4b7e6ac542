// Package l4classify owns Layer 4 (Classification) of the debris detection
// model.
//
// Responsibilities: second-moment shape measurement of segmented regions
// and labelling them as star, debris or noise with a confidence score.
// Key types: Label, Shape, Detection, Classifier, ShapeClassifier.
//
// Dependency rule: L4 may depend on L1-L3, but never on the pipeline.
package l4classify
