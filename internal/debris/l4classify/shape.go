package l4classify

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/debris-tracker/internal/debris/l3segment"
)

// pixelVariance is the variance of a uniform unit pixel. Adding it to both
// axes keeps a one-pixel-wide streak from having a zero minor axis.
const pixelVariance = 1.0 / 12.0

// shapeEpsilon is the smallest eigenvalue treated as non-zero.
const shapeEpsilon = 1e-9

// Shape summarises a region's intensity-weighted second moments.
type Shape struct {
	Lambda1        float64 // larger eigenvalue of the covariance, px^2
	Lambda2        float64 // smaller eigenvalue, px^2
	Elongation     float64 // sqrt(Lambda1 / Lambda2), >= 1
	LengthPx       float64 // uniform-equivalent extent along the major axis
	WidthPx        float64 // uniform-equivalent extent along the minor axis
	OrientationDeg float64 // major axis angle from +x towards +y, [0, 180)
	Degenerate     bool    // moments unusable; the region cannot be shaped
}

// MeasureShape eigen-decomposes the region covariance. A region with no
// positive weight or non-finite moments is marked Degenerate.
func MeasureShape(reg l3segment.Region) Shape {
	m := reg.Moments
	if !(reg.TotalWeight > 0) || !finite(m.XX) || !finite(m.XY) || !finite(m.YY) {
		return Shape{Degenerate: true}
	}

	cov := mat.NewSymDense(2, []float64{
		m.XX + pixelVariance, m.XY,
		m.XY, m.YY + pixelVariance,
	})
	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return Shape{Degenerate: true}
	}
	vals := eig.Values(nil) // ascending
	l2, l1 := vals[0], vals[1]
	if l2 <= shapeEpsilon || !finite(l1) {
		return Shape{Degenerate: true}
	}

	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	vx, vy := vecs.At(0, 1), vecs.At(1, 1)
	angle := math.Atan2(vy, vx) * 180 / math.Pi
	if angle < 0 {
		angle += 180
	}
	if angle >= 180 {
		angle -= 180
	}

	return Shape{
		Lambda1:        l1,
		Lambda2:        l2,
		Elongation:     math.Sqrt(l1 / l2),
		LengthPx:       math.Sqrt(12 * l1),
		WidthPx:        math.Sqrt(12 * l2),
		OrientationDeg: angle,
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
