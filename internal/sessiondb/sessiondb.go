package sessiondb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ivlev/satwatch/internal/signal"
	"github.com/ivlev/satwatch/internal/store"
	"github.com/ivlev/satwatch/internal/track"
	"github.com/ivlev/satwatch/internal/vision"
)

// Session is the summary row of one archived monitoring run.
type Session struct {
	SessionID string `json:"session_id"`
	StartedAt int64  `json:"started_at"`
	EndedAt   int64  `json:"ended_at"`
	Profile   string `json:"profile"`
	Frames    int    `json:"frames"`
	Alerts    int    `json:"alerts"`
}

// Archive persists finished monitoring runs to SQLite so a session can
// be inspected after the process exits.
type Archive struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	ended_at   INTEGER NOT NULL,
	profile    TEXT NOT NULL,
	frames     INTEGER NOT NULL,
	alerts     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS session_records (
	session_id  TEXT NOT NULL,
	frame       INTEGER NOT NULL,
	ts          INTEGER NOT NULL,
	status      INTEGER NOT NULL,
	alert       INTEGER NOT NULL,
	cx          REAL NOT NULL,
	cy          REAL NOT NULL,
	a           REAL NOT NULL,
	b           REAL NOT NULL,
	angle       REAL NOT NULL,
	sample_json TEXT NOT NULL,
	PRIMARY KEY (session_id, frame)
);
`

// Open opens (or creates) the archive database at path.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// SaveSession archives one run under a fresh session ID. Records are
// written in a single transaction; an empty run is skipped.
func (a *Archive) SaveSession(profile string, records []store.Record) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	sessionID := uuid.New().String()
	alerts := 0
	for _, r := range records {
		if r.Alert {
			alerts++
		}
	}

	tx, err := a.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sessions (session_id, started_at, ended_at, profile, frames, alerts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID,
		records[0].Timestamp.UnixNano(),
		records[len(records)-1].Timestamp.UnixNano(),
		profile, len(records), alerts,
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO session_records (session_id, frame, ts, status, alert, cx, cy, a, b, angle, sample_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare record insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		sampleJSON, err := json.Marshal(r.Sample)
		if err != nil {
			return "", fmt.Errorf("marshal sample: %w", err)
		}
		_, err = stmt.Exec(
			sessionID, r.Frame, r.Timestamp.UnixNano(), int(r.Status), boolToInt(r.Alert),
			r.Shape.Cx, r.Shape.Cy, r.Shape.A, r.Shape.B, r.Shape.Angle,
			string(sampleJSON),
		)
		if err != nil {
			return "", fmt.Errorf("insert record %d: %w", r.Frame, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit archive tx: %w", err)
	}
	return sessionID, nil
}

// ListSessions returns all archived sessions, newest first.
func (a *Archive) ListSessions() ([]Session, error) {
	rows, err := a.db.Query(`
		SELECT session_id, started_at, ended_at, profile, frames, alerts
		FROM sessions
		ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.SessionID, &s.StartedAt, &s.EndedAt, &s.Profile, &s.Frames, &s.Alerts); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// LoadRecords rebuilds the time series of one archived session in
// frame order.
func (a *Archive) LoadRecords(sessionID string) ([]store.Record, error) {
	rows, err := a.db.Query(`
		SELECT frame, ts, status, alert, cx, cy, a, b, angle, sample_json
		FROM session_records
		WHERE session_id = ?
		ORDER BY frame`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session records: %w", err)
	}
	defer rows.Close()

	var records []store.Record
	for rows.Next() {
		var (
			r          store.Record
			ts         int64
			status     int
			alert      int
			shape      vision.Ellipse
			sampleJSON string
		)
		err := rows.Scan(&r.Frame, &ts, &status, &alert,
			&shape.Cx, &shape.Cy, &shape.A, &shape.B, &shape.Angle, &sampleJSON)
		if err != nil {
			return nil, fmt.Errorf("scan session record: %w", err)
		}

		var sample signal.FrameSample
		if err := json.Unmarshal([]byte(sampleJSON), &sample); err != nil {
			return nil, fmt.Errorf("decode sample json: %w", err)
		}

		r.Timestamp = time.Unix(0, ts).UTC()
		r.Status = track.Status(status)
		r.Alert = alert != 0
		r.Shape = shape
		r.Sample = sample
		records = append(records, r)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
