package l3segment

import (
	"fmt"
	"math"

	"github.com/banshee-data/debris-tracker/internal/debris/l2background"
	"github.com/banshee-data/debris-tracker/internal/debris/robust"
)

// NoiseEstimator selects how residual noise is measured.
type NoiseEstimator string

const (
	// NoiseMAD uses the median and 1.4826 x median absolute deviation,
	// with the deviation median interpolated across tied values so whole-DN
	// residuals give a smooth sigma.
	NoiseMAD NoiseEstimator = "mad"
	// NoiseStdDev uses the plain mean and sample standard deviation. Bright
	// sources inflate it; kept for comparison runs.
	NoiseStdDev NoiseEstimator = "stddev"
	// NoiseKappaSigma iteratively clips samples beyond 3 sigma.
	NoiseKappaSigma NoiseEstimator = "kappa_sigma"
)

const (
	kappaSigmaClip     = 3.0
	kappaSigmaTol      = 1e-3
	kappaSigmaMaxIters = 10
)

// Valid reports whether e names a known estimator.
func (e NoiseEstimator) Valid() bool {
	switch e {
	case NoiseMAD, NoiseStdDev, NoiseKappaSigma:
		return true
	}
	return false
}

// Noise is the residual's central level and spread.
type Noise struct {
	Center    float64
	Sigma     float64
	Estimator NoiseEstimator
	Floored   bool // Sigma was raised to the configured floor
}

// EstimateNoise measures the residual's center and sigma with est, then
// raises sigma to floor if it falls below it. A floor of zero disables it.
func EstimateNoise(r l2background.Residual, est NoiseEstimator, floor float64) (Noise, error) {
	if r.Empty() {
		return Noise{}, fmt.Errorf("cannot estimate noise of an empty residual")
	}
	n := Noise{Estimator: est}
	switch est {
	case NoiseMAD, "":
		n.Estimator = NoiseMAD
		n.Center, n.Sigma = robust.InterpolatedMADSigma(r.Pix)
	case NoiseStdDev:
		n.Center, n.Sigma = robust.MeanStdDev(r.Pix)
	case NoiseKappaSigma:
		ks := robust.KappaSigma(r.Pix, kappaSigmaClip, kappaSigmaTol, kappaSigmaMaxIters)
		n.Center, n.Sigma = ks.Mean, ks.Sigma
	default:
		return Noise{}, fmt.Errorf("unknown noise estimator %q", est)
	}
	if math.IsNaN(n.Sigma) || n.Sigma < floor {
		n.Sigma = floor
		n.Floored = true
	}
	tracef("noise %s: center=%.3f sigma=%.3f floored=%v", n.Estimator, n.Center, n.Sigma, n.Floored)
	return n, nil
}
