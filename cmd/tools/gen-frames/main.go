// Command gen-frames writes a synthetic star field with a moving streak
// as a numbered frame sequence, for exercising debris-detect.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/banshee-data/debris-tracker/internal/debris/l1frames"
	"github.com/banshee-data/debris-tracker/internal/debris/synthetic"
)

func main() {
	outDir := flag.String("o", "frames", "output directory")
	frames := flag.Int("n", 50, "number of frames")
	width := flag.Int("width", 640, "frame width")
	height := flag.Int("height", 480, "frame height")
	stars := flag.Int("stars", 60, "number of background stars")
	seed := flag.Uint64("seed", 42, "noise seed")
	step := flag.Float64("step", 8, "streak motion per frame (px)")
	length := flag.Float64("length", 70, "streak length (px)")
	format := flag.String("format", "png", "output format: png or fits")
	flag.Parse()

	if *format != "png" && *format != "fits" {
		log.Fatalf("unknown format %q", *format)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}

	field := synthetic.DefaultField(*width, *height, *seed)
	field.Stars = synthetic.RandomStars(*stars, *width, *height, 600, 1200, 1.2, *seed)
	seq := synthetic.NewStreakSequence(field, *frames)
	seq.Streak.X1 = seq.Streak.X0 + *length
	seq.StepX = *step

	for i := 0; i < *frames; i++ {
		f, err := seq.Next()
		if err != nil {
			log.Fatalf("frame %d: %v", i, err)
		}
		ts := f.Timestamp.UTC()
		name := fmt.Sprintf("frame_%04d_%s_%06d.%s", i, ts.Format("150405"), ts.Nanosecond()/1000, *format)
		path := filepath.Join(*outDir, name)
		if err := write(path, f, *format); err != nil {
			log.Fatalf("write %s: %v", path, err)
		}
		if (i+1)%10 == 0 {
			log.Printf("%d/%d frames", i+1, *frames)
		}
	}
	log.Printf("✓ Created %d frames in %s", *frames, *outDir)
}

func write(path string, f l1frames.Frame, format string) error {
	if format == "png" {
		return imaging.Save(f.Gray(), path)
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := l1frames.EncodeFITS(out, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
