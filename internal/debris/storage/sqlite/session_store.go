package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/debris-tracker/internal/debris/pipeline"
)

// Session is one detection run over a frame source.
type Session struct {
	SessionID       string          `json:"session_id"`
	Source          string          `json:"source"`
	StartedAt       int64           `json:"started_at"`
	FinishedAt      int64           `json:"finished_at,omitempty"`
	FramesTotal     int             `json:"frames_total"`
	FramesWarming   int             `json:"frames_warming"`
	FramesDiscarded int             `json:"frames_discarded"`
	FramesProcessed int             `json:"frames_processed"`
	FPS             float64         `json:"fps"`
	DurationSecs    float64         `json:"duration_s"`
	ParamsJSON      json.RawMessage `json:"params_json,omitempty"`
	Version         string          `json:"version,omitempty"`
}

// Finished reports whether FinishSession has been recorded.
func (s *Session) Finished() bool { return s.FinishedAt != 0 }

// InsertSession persists a new session. If SessionID is empty, a UUID is generated.
func (db *DB) InsertSession(sess *Session) error {
	if sess.SessionID == "" {
		sess.SessionID = uuid.New().String()
	}
	if sess.StartedAt == 0 {
		sess.StartedAt = time.Now().UnixNano()
	}

	var paramsStr interface{}
	if len(sess.ParamsJSON) > 0 {
		paramsStr = string(sess.ParamsJSON)
	}

	return retryOnBusy(func() error {
		_, err := db.Exec(`
			INSERT INTO detection_sessions (
				session_id, source, started_at, params_json, version
			) VALUES (?, ?, ?, ?, ?)`,
			sess.SessionID, sess.Source, sess.StartedAt, paramsStr, sess.Version,
		)
		return err
	})
}

// FinishSession records the run summary against a session.
func (db *DB) FinishSession(sessionID string, summary pipeline.RunSummary) error {
	finished := summary.Finished
	if finished.IsZero() {
		finished = time.Now()
	}
	return retryOnBusy(func() error {
		result, err := db.Exec(`
			UPDATE detection_sessions
			SET finished_at = ?, frames_total = ?, frames_warming = ?,
			    frames_discarded = ?, frames_processed = ?, fps = ?, duration_s = ?
			WHERE session_id = ?`,
			finished.UnixNano(), summary.Frames, summary.Warming,
			summary.Discarded, summary.Processed, summary.FPS(), summary.Duration().Seconds(),
			sessionID,
		)
		if err != nil {
			return fmt.Errorf("finish session: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("session %s not found", sessionID)
		}
		return nil
	})
}

const sessionColumns = `
	session_id, source, started_at, finished_at,
	frames_total, frames_warming, frames_discarded, frames_processed,
	fps, duration_s, params_json, version`

// GetSession returns a single session by ID.
func (db *DB) GetSession(sessionID string) (*Session, error) {
	row := db.QueryRow(`SELECT`+sessionColumns+`
		FROM detection_sessions
		WHERE session_id = ?`, sessionID)

	sess, err := scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session %s not found", sessionID)
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return sess, nil
}

// ListSessions returns the most recent sessions, newest first.
func (db *DB) ListSessions(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`SELECT`+sessionColumns+`
		FROM detection_sessions
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session and, through the foreign key, its
// detections.
func (db *DB) DeleteSession(sessionID string) error {
	return retryOnBusy(func() error {
		result, err := db.Exec(`DELETE FROM detection_sessions WHERE session_id = ?`, sessionID)
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("session %s not found", sessionID)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var s Session
	var finished sql.NullInt64
	var fps, duration sql.NullFloat64
	var paramsStr, version sql.NullString
	err := row.Scan(
		&s.SessionID, &s.Source, &s.StartedAt, &finished,
		&s.FramesTotal, &s.FramesWarming, &s.FramesDiscarded, &s.FramesProcessed,
		&fps, &duration, &paramsStr, &version,
	)
	if err != nil {
		return nil, err
	}
	s.FinishedAt = finished.Int64
	s.FPS = fps.Float64
	s.DurationSecs = duration.Float64
	s.Version = version.String
	if paramsStr.Valid {
		s.ParamsJSON = json.RawMessage(paramsStr.String)
	}
	return &s, nil
}
