package db

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/senseedge/internal/report"
)

// Run is one recorded simulation or capture session. Timestamps are
// kept in SQLite's text form.
type Run struct {
	ID         string  `json:"run_id"`
	Scenario   string  `json:"scenario"`
	StartedAt  string  `json:"started_at"`
	FinishedAt *string `json:"finished_at"`
}

// Classification is one stored classification event.
type Classification struct {
	RunID       string `json:"run_id"`
	Tick        uint64 `json:"tick"`
	ClassID     uint8  `json:"class_id"`
	ClassName   string `json:"class_name"`
	Confidence  uint8  `json:"confidence"`
	AlarmActive bool   `json:"alarm_active"`
}

// AlarmEvent is one stored alarm activation.
type AlarmEvent struct {
	RunID      string `json:"run_id"`
	Tick       uint64 `json:"tick"`
	ClassID    uint8  `json:"class_id"`
	Confidence uint8  `json:"confidence"`
}

// NewRun creates a run record and returns its id.
func (db *DB) NewRun(scenario string) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec("INSERT INTO runs (run_id, scenario) VALUES (?, ?)", id, scenario)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// FinishRun stamps a run as complete.
func (db *DB) FinishRun(runID string) error {
	_, err := db.Exec("UPDATE runs SET finished_at = CURRENT_TIMESTAMP WHERE run_id = ?", runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	return nil
}

// RecordClassification stores one classification event.
func (db *DB) RecordClassification(c Classification) error {
	if c.ClassName == "" {
		c.ClassName = report.ClassName(c.ClassID)
	}
	_, err := db.Exec(`
		INSERT INTO classifications (run_id, tick, class_id, class_name, confidence, alarm_active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.RunID, c.Tick, c.ClassID, c.ClassName, c.Confidence, c.AlarmActive)
	if err != nil {
		return fmt.Errorf("failed to record classification: %w", err)
	}
	return nil
}

// RecordAlarm stores one alarm activation.
func (db *DB) RecordAlarm(a AlarmEvent) error {
	_, err := db.Exec(`
		INSERT INTO alarm_events (run_id, tick, class_id, confidence)
		VALUES (?, ?, ?, ?)`,
		a.RunID, a.Tick, a.ClassID, a.Confidence)
	if err != nil {
		return fmt.Errorf("failed to record alarm event: %w", err)
	}
	return nil
}

// Classifications returns the most recent classification events for a
// run, newest first.
func (db *DB) Classifications(runID string, limit int) ([]Classification, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := db.Query(`
		SELECT run_id, tick, class_id, class_name, confidence, alarm_active
		FROM classifications WHERE run_id = ?
		ORDER BY tick DESC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Classification
	for rows.Next() {
		var c Classification
		if err := rows.Scan(&c.RunID, &c.Tick, &c.ClassID, &c.ClassName, &c.Confidence, &c.AlarmActive); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AlarmEvents returns all alarm activations for a run in tick order.
func (db *DB) AlarmEvents(runID string) ([]AlarmEvent, error) {
	rows, err := db.Query(`
		SELECT run_id, tick, class_id, confidence
		FROM alarm_events WHERE run_id = ? ORDER BY tick`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AlarmEvent
	for rows.Next() {
		var a AlarmEvent
		if err := rows.Scan(&a.RunID, &a.Tick, &a.ClassID, &a.Confidence); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ClassCounts returns how many classification events each class
// received over a run.
func (db *DB) ClassCounts(runID string) (map[string]int, error) {
	rows, err := db.Query(`
		SELECT class_name, COUNT(*) FROM classifications
		WHERE run_id = ? GROUP BY class_name`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		counts[name] = n
	}
	return counts, rows.Err()
}

// Runs lists recorded runs, newest first.
func (db *DB) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT run_id, scenario, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Scenario, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
