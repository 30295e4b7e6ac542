package synthetic

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/debris-tracker/internal/debris/l2background"
)

// Injection adds its flux to an image in place.
type Injection interface {
	Render(img *l2background.Image)
}

// PointSource is a Gaussian PSF integrated over each pixel.
type PointSource struct {
	X, Y  float64 // centre, px
	Flux  float64 // total counts
	Sigma float64 // PSF width, px
}

func (s PointSource) Render(img *l2background.Image) {
	if s.Sigma <= 0 || s.Flux == 0 {
		return
	}
	psf := distuv.Normal{Mu: 0, Sigma: s.Sigma}
	r := int(math.Ceil(5 * s.Sigma))
	cx, cy := int(math.Round(s.X)), int(math.Round(s.Y))
	for y := max(cy-r, 0); y <= min(cy+r, img.Height-1); y++ {
		fy := psf.CDF(float64(y)+0.5-s.Y) - psf.CDF(float64(y)-0.5-s.Y)
		for x := max(cx-r, 0); x <= min(cx+r, img.Width-1); x++ {
			fx := psf.CDF(float64(x)+0.5-s.X) - psf.CDF(float64(x)-0.5-s.X)
			img.Pix[y*img.Width+x] += s.Flux * fx * fy
		}
	}
}

// Streak is a line segment with a Gaussian cross-section, the trail a fast
// mover leaves during one exposure.
type Streak struct {
	X0, Y0     float64 // start, px
	X1, Y1     float64 // end, px
	Brightness float64 // peak counts on the centre line
	Width      float64 // cross-section sigma, px
}

// Length is the segment length in pixels.
func (s Streak) Length() float64 { return math.Hypot(s.X1-s.X0, s.Y1-s.Y0) }

// Midpoint is the segment centre.
func (s Streak) Midpoint() (float64, float64) { return (s.X0 + s.X1) / 2, (s.Y0 + s.Y1) / 2 }

func (s Streak) Render(img *l2background.Image) {
	if s.Width <= 0 || s.Brightness == 0 {
		return
	}
	profile := distuv.Normal{Mu: 0, Sigma: s.Width}
	norm := s.Brightness / profile.Prob(0)

	dx, dy := s.X1-s.X0, s.Y1-s.Y0
	l2 := dx*dx + dy*dy
	pad := 4 * s.Width
	xmin := max(int(math.Floor(math.Min(s.X0, s.X1)-pad)), 0)
	xmax := min(int(math.Ceil(math.Max(s.X0, s.X1)+pad)), img.Width-1)
	ymin := max(int(math.Floor(math.Min(s.Y0, s.Y1)-pad)), 0)
	ymax := min(int(math.Ceil(math.Max(s.Y0, s.Y1)+pad)), img.Height-1)

	for y := ymin; y <= ymax; y++ {
		for x := xmin; x <= xmax; x++ {
			px, py := float64(x)-s.X0, float64(y)-s.Y0
			t := 0.0
			if l2 > 0 {
				t = math.Max(0, math.Min(1, (px*dx+py*dy)/l2))
			}
			d := math.Hypot(px-t*dx, py-t*dy)
			if d > pad {
				continue
			}
			img.Pix[y*img.Width+x] += norm * profile.Prob(d)
		}
	}
}

// HotPixel brightens a single pixel, the signature of a sensor defect or a
// cosmic ray hit.
type HotPixel struct {
	X, Y  int
	Value float64
}

func (h HotPixel) Render(img *l2background.Image) {
	if h.X < 0 || h.Y < 0 || h.X >= img.Width || h.Y >= img.Height {
		return
	}
	img.Pix[h.Y*img.Width+h.X] += h.Value
}
