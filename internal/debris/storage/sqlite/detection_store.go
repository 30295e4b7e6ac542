package sqlite

import (
	"database/sql"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/debris-tracker/internal/debris/l4classify"
	"github.com/banshee-data/debris-tracker/internal/debris/pipeline"
)

// DetectionStore writes the detections of one session. It satisfies
// pipeline.Sink.
type DetectionStore struct {
	db        *DB
	sessionID string
}

// NewDetectionStore returns a store bound to an existing session.
func NewDetectionStore(db *DB, sessionID string) *DetectionStore {
	return &DetectionStore{db: db, sessionID: sessionID}
}

// StartSession records a new session and returns a store writing into it.
func (db *DB) StartSession(sess *Session) (*DetectionStore, error) {
	if err := db.InsertSession(sess); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	diagf("session %s started: source=%s", sess.SessionID, sess.Source)
	return NewDetectionStore(db, sess.SessionID), nil
}

// FinishSession stores the run totals against the store's session.
func (s *DetectionStore) FinishSession(summary pipeline.RunSummary) error {
	if err := s.db.FinishSession(s.sessionID, summary); err != nil {
		return err
	}
	diagf("session %s finished: frames=%d processed=%d fps=%.2f",
		s.sessionID, summary.Frames, summary.Processed, summary.FPS())
	return nil
}

// SessionID is the session detections are recorded under.
func (s *DetectionStore) SessionID() string { return s.sessionID }

// Consume inserts every detection of res in a single transaction.
func (s *DetectionStore) Consume(res pipeline.FrameResult) error {
	if len(res.Detections) == 0 {
		return nil
	}
	return retryOnBusy(func() error {
		return s.insertAll(res.Detections)
	})
}

func (s *DetectionStore) insertAll(dets []l4classify.Detection) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO detections (
			detection_id, session_id, frame_index, frame_unix_nanos, label, confidence,
			centroid_x, centroid_y, area_px,
			bbox_min_x, bbox_min_y, bbox_max_x, bbox_max_y,
			flux, peak, snr, elongation, length_px, width_px, orientation_deg,
			noise_sigma, touches_border, model
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range dets {
		nanos, err := unixNanos(d.Timestamp)
		if err != nil {
			return fmt.Errorf("frame %d: %w", d.FrameIndex, err)
		}
		border := 0
		if d.TouchesBorder {
			border = 1
		}
		_, err = stmt.Exec(
			uuid.New().String(), s.sessionID, d.FrameIndex, nanos, string(d.Label), d.Confidence,
			d.CentroidX, d.CentroidY, d.Area,
			d.BBox.Min.X, d.BBox.Min.Y, d.BBox.Max.X, d.BBox.Max.Y,
			d.Flux, d.Peak, d.SNR, d.Elongation, d.LengthPx, d.WidthPx, d.OrientationDeg,
			d.NoiseSigma, border, d.Model,
		)
		if err != nil {
			return fmt.Errorf("insert detection: %w", err)
		}
	}
	return tx.Commit()
}

// ListDetections returns the session's detections in frame order. An
// empty label returns every label.
func (s *DetectionStore) ListDetections(label l4classify.Label) ([]l4classify.Detection, error) {
	query := `
		SELECT frame_index, frame_unix_nanos, label, confidence,
		       centroid_x, centroid_y, area_px,
		       bbox_min_x, bbox_min_y, bbox_max_x, bbox_max_y,
		       flux, peak, snr, elongation, length_px, width_px, orientation_deg,
		       noise_sigma, touches_border, model
		FROM detections
		WHERE session_id = ?`
	args := []any{s.sessionID}
	if label != "" {
		query += ` AND label = ?`
		args = append(args, string(label))
	}
	query += ` ORDER BY frame_index, centroid_y, centroid_x`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query detections: %w", err)
	}
	defer rows.Close()

	var dets []l4classify.Detection
	for rows.Next() {
		d, err := scanDetection(rows)
		if err != nil {
			return nil, err
		}
		dets = append(dets, d)
	}
	return dets, rows.Err()
}

// CountByLabel returns how many detections of each label the session holds.
func (s *DetectionStore) CountByLabel() (map[l4classify.Label]int, error) {
	rows, err := s.db.Query(`
		SELECT label, COUNT(*)
		FROM detections
		WHERE session_id = ?
		GROUP BY label`, s.sessionID)
	if err != nil {
		return nil, fmt.Errorf("count detections: %w", err)
	}
	defer rows.Close()

	counts := make(map[l4classify.Label]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[l4classify.Label(label)] = n
	}
	return counts, rows.Err()
}

// Earliest and latest instants UnixNano can represent.
var (
	minNanoTime = time.Unix(0, math.MinInt64)
	maxNanoTime = time.Unix(0, math.MaxInt64)
)

// unixNanos maps a frame time to its column value. Frames without a
// capture time are stored as NULL rather than the overflowed UnixNano of
// year 1.
func unixNanos(t time.Time) (sql.NullInt64, error) {
	if t.IsZero() {
		return sql.NullInt64{}, nil
	}
	if t.Before(minNanoTime) || t.After(maxNanoTime) {
		return sql.NullInt64{}, fmt.Errorf("timestamp %s outside the storable range", t.Format(time.RFC3339))
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}, nil
}

func scanDetection(rows *sql.Rows) (l4classify.Detection, error) {
	var d l4classify.Detection
	var nanos sql.NullInt64
	var label string
	var border int
	var model sql.NullString
	var minX, minY, maxX, maxY int
	err := rows.Scan(
		&d.FrameIndex, &nanos, &label, &d.Confidence,
		&d.CentroidX, &d.CentroidY, &d.Area,
		&minX, &minY, &maxX, &maxY,
		&d.Flux, &d.Peak, &d.SNR, &d.Elongation, &d.LengthPx, &d.WidthPx, &d.OrientationDeg,
		&d.NoiseSigma, &border, &model,
	)
	if err != nil {
		return d, fmt.Errorf("scan detection row: %w", err)
	}
	if nanos.Valid {
		d.Timestamp = time.Unix(0, nanos.Int64).UTC()
	}
	d.Label = l4classify.Label(label)
	d.BBox = image.Rect(minX, minY, maxX, maxY)
	d.TouchesBorder = border != 0
	d.Model = model.String
	return d, nil
}
