package export

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/banshee-data/debris-tracker/internal/debris/l4classify"
	"github.com/banshee-data/debris-tracker/internal/debris/pipeline"
)

// MetadataFile is the name of the per-session metadata document.
const MetadataFile = "metadata.json"

// SessionMetadata describes a finished session.
type SessionMetadata struct {
	SessionID       string                   `json:"session_id"`
	Source          string                   `json:"source"`
	StartedAt       time.Time                `json:"started_at"`
	Frames          int                      `json:"frames"`
	FramesWarming   int                      `json:"frames_warming"`
	FramesDiscarded int                      `json:"frames_discarded"`
	FramesProcessed int                      `json:"frames_processed"`
	FPS             float64                  `json:"fps"`
	DurationSecs    float64                  `json:"duration_s"`
	Detections      map[l4classify.Label]int `json:"detections"`
	Version         string                   `json:"version,omitempty"`
	Params          json.RawMessage          `json:"params,omitempty"`
}

// NewSessionMetadata fills the counters from a run summary. FPS is
// rounded to 2 decimals and duration to milliseconds.
func NewSessionMetadata(sessionID, source string, summary pipeline.RunSummary) SessionMetadata {
	return SessionMetadata{
		SessionID:       sessionID,
		Source:          source,
		StartedAt:       summary.Started.UTC(),
		Frames:          summary.Frames,
		FramesWarming:   summary.Warming,
		FramesDiscarded: summary.Discarded,
		FramesProcessed: summary.Processed,
		FPS:             round(summary.FPS(), 2),
		DurationSecs:    round(summary.Duration().Seconds(), 3),
		Detections:      summary.Detections,
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// WriteMetadata writes meta as indented JSON to path.
func WriteMetadata(path string, meta SessionMetadata) error {
	return writeJSON(path, meta)
}

// ReadMetadata loads a metadata document.
func ReadMetadata(path string) (SessionMetadata, error) {
	var meta SessionMetadata
	data, err := os.ReadFile(path)
	if err != nil {
		return meta, fmt.Errorf("read metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("parse metadata: %w", err)
	}
	return meta, nil
}
