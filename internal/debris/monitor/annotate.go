package monitor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"slices"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/banshee-data/debris-tracker/internal/debris/l2background"
	"github.com/banshee-data/debris-tracker/internal/debris/l4classify"
	"github.com/banshee-data/debris-tracker/internal/debris/pipeline"
)

// PreviewFile is the name of the median background preview.
const PreviewFile = "preview_median.png"

// LabelColor returns the overlay colour used for a label.
func LabelColor(label l4classify.Label) color.RGBA {
	var c colorful.Color
	switch label {
	case l4classify.LabelDebris:
		c = colorful.Hsv(0, 0.75, 1)
	case l4classify.LabelStar:
		c = colorful.Hsv(135, 0.7, 0.9)
	default:
		c = colorful.Hsv(50, 0.25, 0.75)
	}
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// Annotator saves an annotated copy of every frame that contains one of
// its trigger labels as detection_NNNNN.png. It satisfies pipeline.Sink.
type Annotator struct {
	dir      string
	triggers []l4classify.Label
	saved    int
}

// NewAnnotator writes into dir. With no triggers, only frames with debris
// are saved.
func NewAnnotator(dir string, triggers ...l4classify.Label) *Annotator {
	if len(triggers) == 0 {
		triggers = []l4classify.Label{l4classify.LabelDebris}
	}
	return &Annotator{dir: dir, triggers: triggers}
}

// Saved is the number of frames written.
func (a *Annotator) Saved() int { return a.saved }

// Consume implements pipeline.Sink.
func (a *Annotator) Consume(res pipeline.FrameResult) error {
	hit := slices.ContainsFunc(res.Detections, func(d l4classify.Detection) bool {
		return slices.Contains(a.triggers, d.Label)
	})
	if !hit {
		return nil
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("create annotation dir: %w", err)
	}
	path := filepath.Join(a.dir, fmt.Sprintf("detection_%05d.png", res.Frame.Index))
	if err := imaging.Save(Annotate(res), path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	a.saved++
	tracef("frame %d annotated: %s", res.Frame.Index, path)
	return nil
}

// Annotate draws every detection of res over the frame: a box around the
// region and a short label above it.
func Annotate(res pipeline.FrameResult) *image.RGBA {
	bounds := res.Frame.Bounds()
	img := image.NewRGBA(bounds)
	draw.Draw(img, bounds, res.Frame.Gray(), bounds.Min, draw.Src)

	face := basicfont.Face7x13
	for _, d := range res.Detections {
		c := LabelColor(d.Label)
		box := d.BBox.Inset(-2).Intersect(bounds)
		drawRect(img, box, c)

		text := fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
		y := box.Min.Y - 3
		if y < face.Ascent {
			y = box.Max.Y + face.Ascent + 2
		}
		drawText(img, face, text, box.Min.X, y, c)
	}

	summary := fmt.Sprintf("#%d debris=%d stars=%d", res.Frame.Index,
		res.Count(l4classify.LabelDebris), res.Count(l4classify.LabelStar))
	drawText(img, face, summary, 2, bounds.Max.Y-3, color.RGBA{R: 230, G: 230, B: 230, A: 255})
	return img
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, c)
		img.SetRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, c)
		img.SetRGBA(r.Max.X-1, y, c)
	}
}

func drawText(img *image.RGBA, face font.Face, s string, x, y int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// WriteBackgroundPreview saves the median background stretched to its
// own range as an 8-bit PNG.
func WriteBackgroundPreview(path string, bg l2background.Image) error {
	if bg.Empty() {
		return fmt.Errorf("background not yet estimated")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	lo, hi := bg.Range()
	if lo == hi {
		opsf("background is flat at %.1f DN; check the lens cap and exposure", lo)
	}
	if err := imaging.Save(bg.Gray(lo, hi), path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	diagf("background preview written to %s (range %.1f..%.1f)", path, lo, hi)
	return nil
}
