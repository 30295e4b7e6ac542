// Package monitor renders diagnostic artefacts for a detection session:
// residual histograms, a detection scatter chart, annotated detection
// frames and the median background preview.
package monitor
