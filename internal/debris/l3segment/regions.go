package l3segment

import (
	"image"
	"math"

	"github.com/banshee-data/debris-tracker/internal/debris/l2background"
)

// Connectivity is the pixel neighbourhood used to join mask pixels.
type Connectivity int

const (
	Connectivity4 Connectivity = 4
	Connectivity8 Connectivity = 8
)

func (c Connectivity) Valid() bool { return c == Connectivity4 || c == Connectivity8 }

var (
	offsets4 = []image.Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	offsets8 = []image.Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

// Moments are intensity-weighted central second moments in pixel units.
type Moments struct {
	XX float64
	XY float64
	YY float64
}

// Region is one connected group of significant pixels. Weights throughout
// are the pixel excess over the noise center.
type Region struct {
	ID            int // 1-based, in raster order of each region's first pixel
	Pixels        []image.Point
	Area          int
	BBox          image.Rectangle
	CentroidX     float64
	CentroidY     float64
	Flux          float64 // summed excess
	Peak          float64 // largest excess
	TotalWeight   float64
	Moments       Moments
	TouchesBorder bool
}

// Centroid returns the intensity-weighted centroid.
func (r Region) Centroid() (float64, float64) { return r.CentroidX, r.CentroidY }

// ExtractRegions labels connected components of mask and measures them
// against residual. Components smaller than minArea pixels are dropped;
// the number dropped is returned alongside the kept regions. Output order
// is deterministic: raster order of each component's first pixel.
func ExtractRegions(mask Mask, residual l2background.Residual, noise Noise, pol Polarity, conn Connectivity, minArea int) ([]Region, int) {
	offsets := offsets8
	if conn == Connectivity4 {
		offsets = offsets4
	}
	w, h := mask.Width, mask.Height
	visited := make([]bool, len(mask.Bits))
	var (
		regions []Region
		dropped int
		stack   []int
		pixels  []image.Point
	)

	for seed, set := range mask.Bits {
		if !set || visited[seed] {
			continue
		}
		visited[seed] = true
		stack = append(stack[:0], seed)
		pixels = pixels[:0]
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			pixels = append(pixels, image.Pt(x, y))
			for _, o := range offsets {
				nx, ny := x+o.X, y+o.Y
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if mask.Bits[j] && !visited[j] {
					visited[j] = true
					stack = append(stack, j)
				}
			}
		}
		if len(pixels) < minArea {
			dropped++
			continue
		}
		pts := make([]image.Point, len(pixels))
		copy(pts, pixels)
		reg := measure(pts, residual, noise, pol)
		reg.ID = len(regions) + 1
		regions = append(regions, reg)
	}
	if dropped > 0 {
		tracef("dropped %d components below %d px", dropped, minArea)
	}
	return regions, dropped
}

func measure(pts []image.Point, residual l2background.Residual, noise Noise, pol Polarity) Region {
	w, h := residual.Width, residual.Height
	reg := Region{Pixels: pts, Area: len(pts), Peak: math.Inf(-1)}
	bb := image.Rectangle{Min: pts[0], Max: pts[0].Add(image.Pt(1, 1))}

	var sx, sy float64
	for _, p := range pts {
		bb = bb.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
		if p.X == 0 || p.Y == 0 || p.X == w-1 || p.Y == h-1 {
			reg.TouchesBorder = true
		}
		wt := excess(residual.At(p.X, p.Y), noise, pol)
		if wt > reg.Peak {
			reg.Peak = wt
		}
		if wt < 0 {
			wt = 0
		}
		reg.TotalWeight += wt
		sx += wt * float64(p.X)
		sy += wt * float64(p.Y)
	}
	reg.BBox = bb
	reg.Flux = reg.TotalWeight
	if reg.TotalWeight <= 0 {
		return reg
	}
	reg.CentroidX = sx / reg.TotalWeight
	reg.CentroidY = sy / reg.TotalWeight

	for _, p := range pts {
		wt := math.Max(excess(residual.At(p.X, p.Y), noise, pol), 0)
		dx := float64(p.X) - reg.CentroidX
		dy := float64(p.Y) - reg.CentroidY
		reg.Moments.XX += wt * dx * dx
		reg.Moments.XY += wt * dx * dy
		reg.Moments.YY += wt * dy * dy
	}
	reg.Moments.XX /= reg.TotalWeight
	reg.Moments.XY /= reg.TotalWeight
	reg.Moments.YY /= reg.TotalWeight
	return reg
}
