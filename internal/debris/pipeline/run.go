package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/debris-tracker/internal/debris/l1frames"
	"github.com/banshee-data/debris-tracker/internal/debris/l4classify"
)

// Sink receives every ready frame result. Persistence, export and
// monitoring adapters implement it.
type Sink interface {
	Consume(res FrameResult) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(res FrameResult) error

func (f SinkFunc) Consume(res FrameResult) error { return f(res) }

// RunSummary describes one pass over a frame source.
type RunSummary struct {
	Started    time.Time
	Finished   time.Time
	Frames     int // frames read from the source
	Warming    int // frames consumed by warm-up
	Discarded  int // frames rejected for size
	Processed  int // frames that produced a result
	Detections map[l4classify.Label]int
}

// Duration is the wall-clock length of the run.
func (s RunSummary) Duration() time.Duration { return s.Finished.Sub(s.Started) }

// FPS is frames read per second of wall-clock time.
func (s RunSummary) FPS() float64 {
	d := s.Duration().Seconds()
	if d <= 0 {
		return 0
	}
	return float64(s.Frames) / d
}

// prefetch is how many decoded frames may wait ahead of the pipeline.
const prefetch = 4

// Run feeds every frame from src through p and hands ready results to each
// sink in order. Loading runs one goroutine ahead of processing. Frames of
// the wrong size are logged and skipped. Run stops at the end of the
// source, on the first source or sink error, or when ctx is cancelled.
func Run(ctx context.Context, src l1frames.Source, p *Pipeline, sinks ...Sink) (RunSummary, error) {
	summary := RunSummary{
		Started:    time.Now(),
		Detections: make(map[l4classify.Label]int),
	}
	g, gctx := errgroup.WithContext(ctx)
	frames := make(chan l1frames.Frame, prefetch)

	g.Go(func() error {
		defer close(frames)
		for {
			f, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading frame: %w", err)
			}
			select {
			case frames <- f:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	g.Go(func() error {
		for f := range frames {
			if err := gctx.Err(); err != nil {
				return err
			}
			summary.Frames++
			res, err := p.Process(f)
			var mismatch *DimensionMismatchError
			switch {
			case IsWarming(err):
				summary.Warming++
				continue
			case errors.As(err, &mismatch):
				summary.Discarded++
				opsf("discarding frame %d: %v", f.Index, err)
				continue
			case err != nil:
				return fmt.Errorf("processing frame %d: %w", f.Index, err)
			}
			summary.Processed++
			for _, d := range res.Detections {
				summary.Detections[d.Label]++
			}
			for _, s := range sinks {
				if err := s.Consume(res); err != nil {
					return fmt.Errorf("sink rejected frame %d: %w", f.Index, err)
				}
			}
		}
		return nil
	})

	err := g.Wait()
	summary.Finished = time.Now()
	diagf("run finished: %d frames, %d warming, %d discarded, %d processed, %d debris, %d stars in %s",
		summary.Frames, summary.Warming, summary.Discarded, summary.Processed,
		summary.Detections[l4classify.LabelDebris], summary.Detections[l4classify.LabelStar],
		summary.Duration().Round(time.Millisecond))
	return summary, err
}
