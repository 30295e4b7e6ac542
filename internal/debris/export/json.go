package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/banshee-data/debris-tracker/internal/debris/l4classify"
	"github.com/banshee-data/debris-tracker/internal/debris/pipeline"
)

// DetectionsFile is the name of the per-session detection list.
const DetectionsFile = "detections.json"

// JSONWriter collects detections and writes them as one indented JSON
// array on Close.
type JSONWriter struct {
	path   string
	labels []l4classify.Label

	mu   sync.Mutex
	dets []l4classify.Detection
}

// NewJSONWriter writes to path on Close. When labels is non-empty only
// detections with one of those labels are kept.
func NewJSONWriter(path string, labels ...l4classify.Label) *JSONWriter {
	return &JSONWriter{path: path, labels: labels, dets: []l4classify.Detection{}}
}

// Consume implements pipeline.Sink.
func (w *JSONWriter) Consume(res pipeline.FrameResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, d := range res.Detections {
		if len(w.labels) > 0 && !slices.Contains(w.labels, d.Label) {
			continue
		}
		w.dets = append(w.dets, d)
	}
	return nil
}

// Len is the number of detections collected so far.
func (w *JSONWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dets)
}

// Close writes the file, creating parent directories as needed.
func (w *JSONWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return writeJSON(w.path, w.dets)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadDetections loads a file written by JSONWriter.
func ReadDetections(path string) ([]l4classify.Detection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read detections: %w", err)
	}
	var dets []l4classify.Detection
	if err := json.Unmarshal(data, &dets); err != nil {
		return nil, fmt.Errorf("parse detections: %w", err)
	}
	return dets, nil
}
