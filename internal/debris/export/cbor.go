package export

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/banshee-data/debris-tracker/internal/debris/l4classify"
	"github.com/banshee-data/debris-tracker/internal/debris/pipeline"
)

// Record is one frame's entry in the CBOR stream.
type Record struct {
	FrameIndex int                    `cbor:"frame_index"`
	Timestamp  time.Time              `cbor:"timestamp"`
	NoiseSigma float64                `cbor:"noise_sigma"`
	Regions    int                    `cbor:"regions"`
	Detections []l4classify.Detection `cbor:"detections"`
}

var encMode = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// CBORWriter streams one Record per ready frame as a sequence of CBOR
// data items. Frames without detections are skipped unless KeepEmpty is
// set.
type CBORWriter struct {
	KeepEmpty bool

	w       io.Writer
	enc     *cbor.Encoder
	records int
	closed  bool
}

// NewCBORWriter encodes to w. If w is an io.Closer, Close closes it.
func NewCBORWriter(w io.Writer) *CBORWriter {
	return &CBORWriter{w: w, enc: encMode.NewEncoder(w)}
}

// Consume implements pipeline.Sink.
func (c *CBORWriter) Consume(res pipeline.FrameResult) error {
	if len(res.Detections) == 0 && !c.KeepEmpty {
		return nil
	}
	rec := Record{
		FrameIndex: res.Frame.Index,
		Timestamp:  res.Frame.Timestamp,
		NoiseSigma: res.Noise.Sigma,
		Regions:    res.Metrics.Regions,
		Detections: res.Detections,
	}
	if err := c.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode frame %d: %w", rec.FrameIndex, err)
	}
	c.records++
	return nil
}

// Records is the number of records written.
func (c *CBORWriter) Records() int { return c.records }

// Close closes the underlying writer when it supports it. Only the first
// call does anything, so a deferred Close can back up an explicit one.
func (c *CBORWriter) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if closer, ok := c.w.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close cbor output: %w", err)
		}
	}
	return nil
}

// ReadCBOR decodes every record from r until EOF.
func ReadCBOR(r io.Reader) ([]Record, error) {
	dec := cbor.NewDecoder(r)
	var records []Record
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("decode record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
}
