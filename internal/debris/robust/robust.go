// Package robust holds the order statistics shared by the background and
// segmentation layers: medians, the median absolute deviation, and an
// iterative kappa-sigma clip.
package robust

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// MADToSigma scales a median absolute deviation to the standard deviation
// of a Gaussian with the same spread.
const MADToSigma = 1.4826

// Median returns the median of xs without modifying it. Even-length input
// averages the two middle values. Empty input returns NaN.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	buf := make([]float64, len(xs))
	copy(buf, xs)
	return MedianInPlace(buf)
}

// MedianInPlace is Median but reorders xs as scratch space.
func MedianInPlace(xs []float64) float64 {
	n := len(xs)
	switch n {
	case 0:
		return math.NaN()
	case 1:
		return xs[0]
	case 2:
		return (xs[0] + xs[1]) / 2
	}
	if n <= 16 {
		insertionSort(xs)
		if n%2 == 1 {
			return xs[n/2]
		}
		return (xs[n/2-1] + xs[n/2]) / 2
	}
	hi := selectK(xs, n/2)
	if n%2 == 1 {
		return hi
	}
	// After selection everything left of n/2 is <= hi; the lower middle
	// value is the max of that half.
	lo := xs[0]
	for _, v := range xs[1 : n/2] {
		if v > lo {
			lo = v
		}
	}
	return (lo + hi) / 2
}

// MAD returns the median and the median absolute deviation about it.
func MAD(xs []float64) (median, mad float64) {
	if len(xs) == 0 {
		return math.NaN(), math.NaN()
	}
	buf := make([]float64, len(xs))
	copy(buf, xs)
	median = MedianInPlace(buf)
	for i, v := range xs {
		buf[i] = math.Abs(v - median)
	}
	return median, MedianInPlace(buf)
}

// MADSigma returns the median and a Gaussian-equivalent sigma from the MAD.
func MADSigma(xs []float64) (median, sigma float64) {
	median, mad := MAD(xs)
	return median, mad * MADToSigma
}

// InterpolatedMedian is the median of quantised data read off its
// histogram: when the middle value is tied, the result is interpolated
// across that value's bin, whose width is the gap to the nearest distinct
// neighbour. Untied input returns Median. Empty input returns NaN.
//
// Integer pixel residuals make the plain median jump a whole step at a
// time; the interpolated value moves smoothly with the underlying spread.
func InterpolatedMedian(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return math.NaN()
	}
	buf := make([]float64, n)
	copy(buf, xs)
	m := selectK(buf, n/2)

	below, equal := 0, 0
	prev, next := math.Inf(-1), math.Inf(1)
	for _, v := range xs {
		switch {
		case v < m:
			below++
			if v > prev {
				prev = v
			}
		case v == m:
			equal++
		default:
			if v < next {
				next = v
			}
		}
	}
	if equal <= 1 {
		return Median(xs)
	}
	h := math.Min(m-prev, next-m)
	if math.IsInf(h, 1) {
		return m
	}
	return m - h/2 + h*(float64(n)/2-float64(below))/float64(equal)
}

// InterpolatedMADSigma is MADSigma with the deviation median taken by
// InterpolatedMedian, so quantised samples do not snap sigma to a
// multiple of the quantisation step. The center is the plain median.
func InterpolatedMADSigma(xs []float64) (median, sigma float64) {
	if len(xs) == 0 {
		return math.NaN(), math.NaN()
	}
	median = Median(xs)
	dev := make([]float64, len(xs))
	for i, v := range xs {
		dev[i] = math.Abs(v - median)
	}
	return median, math.Max(InterpolatedMedian(dev), 0) * MADToSigma
}

// MeanStdDev returns the sample mean and standard deviation.
func MeanStdDev(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return math.NaN(), math.NaN()
	}
	if len(xs) == 1 {
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}

// KappaSigmaResult reports the outcome of an iterative clip.
type KappaSigmaResult struct {
	Mean       float64
	Sigma      float64
	Iterations int
	Kept       int
}

// KappaSigma repeatedly discards samples further than kappa sigma from the
// mean until sigma changes by no more than tol or maxIter passes run.
func KappaSigma(xs []float64, kappa, tol float64, maxIter int) KappaSigmaResult {
	if len(xs) == 0 {
		return KappaSigmaResult{Mean: math.NaN(), Sigma: math.NaN()}
	}
	kept := make([]float64, len(xs))
	copy(kept, xs)
	mean, sigma := MeanStdDev(kept)
	res := KappaSigmaResult{Mean: mean, Sigma: sigma, Iterations: 1, Kept: len(kept)}

	for res.Iterations < maxIter {
		lim := kappa * sigma
		next := kept[:0]
		for _, v := range kept {
			if math.Abs(v-mean) <= lim {
				next = append(next, v)
			}
		}
		kept = next
		if len(kept) == 0 {
			break
		}
		m, s := MeanStdDev(kept)
		res.Iterations++
		done := math.Abs(s-sigma) <= tol
		mean, sigma = m, s
		res.Mean, res.Sigma, res.Kept = mean, sigma, len(kept)
		if done {
			break
		}
	}
	return res
}

func insertionSort(xs []float64) {
	for i := 1; i < len(xs); i++ {
		v := xs[i]
		j := i - 1
		for ; j >= 0 && xs[j] > v; j-- {
			xs[j+1] = xs[j]
		}
		xs[j+1] = v
	}
}

// selectK partially orders xs so xs[k] holds the k-th smallest value and
// everything before it is no larger. Hoare partition with median-of-three
// pivots.
func selectK(xs []float64, k int) float64 {
	lo, hi := 0, len(xs)-1
	for lo < hi {
		mid := lo + (hi-lo)/2
		if xs[mid] < xs[lo] {
			xs[mid], xs[lo] = xs[lo], xs[mid]
		}
		if xs[hi] < xs[lo] {
			xs[hi], xs[lo] = xs[lo], xs[hi]
		}
		if xs[hi] < xs[mid] {
			xs[hi], xs[mid] = xs[mid], xs[hi]
		}
		pivot := xs[mid]
		i, j := lo, hi
		for i <= j {
			for xs[i] < pivot {
				i++
			}
			for xs[j] > pivot {
				j--
			}
			if i <= j {
				xs[i], xs[j] = xs[j], xs[i]
				i++
				j--
			}
		}
		switch {
		case k <= j:
			hi = j
		case k >= i:
			lo = i
		default:
			return xs[k]
		}
	}
	return xs[k]
}
