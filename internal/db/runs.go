package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunRecord is one completed heavy computation (advisory or compression).
type RunRecord struct {
	ID         string          `json:"id"`
	Timestamp  string          `json:"timestamp"`
	Kind       string          `json:"kind"`
	Owner      int64           `json:"owner"`
	Plan       string          `json:"plan"`
	Count      int             `json:"count"`
	TopValue   float64         `json:"top_value"`
	TotalValue float64         `json:"total_value"`
	DurationMs int64           `json:"duration_ms"`
	Params     json.RawMessage `json:"params"`
}

// InsertRun stores a run record and returns its ID. A record without an ID
// gets a fresh UUID.
func (d *DB) InsertRun(r RunRecord, params any) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp == "" {
		r.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode run params: %w", err)
	}
	_, err = d.sql.Exec(
		`INSERT INTO compute_runs (id, timestamp, kind, owner, plan, count, top_value, total_value, duration_ms, params_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Timestamp, r.Kind, r.Owner, r.Plan, r.Count, r.TopValue, r.TotalValue, r.DurationMs, string(paramsJSON),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return r.ID, nil
}

// GetRuns returns the owner's last N runs, newest first.
func (d *DB) GetRuns(owner int64, limit int) []RunRecord {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.sql.Query(
		`SELECT id, timestamp, kind, owner, plan, count, top_value, total_value, duration_ms, COALESCE(params_json, '{}')
		 FROM compute_runs WHERE owner = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?`,
		owner, limit,
	)
	if err != nil {
		return []RunRecord{}
	}
	defer rows.Close()

	records := []RunRecord{}
	for rows.Next() {
		var r RunRecord
		var params string
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Kind, &r.Owner, &r.Plan, &r.Count, &r.TopValue, &r.TotalValue, &r.DurationMs, &params); err != nil {
			continue
		}
		r.Params = json.RawMessage(params)
		records = append(records, r)
	}
	return records
}

// GetRun returns a single run, or nil.
func (d *DB) GetRun(id string) *RunRecord {
	var r RunRecord
	var params string
	err := d.sql.QueryRow(
		`SELECT id, timestamp, kind, owner, plan, count, top_value, total_value, duration_ms, COALESCE(params_json, '{}')
		 FROM compute_runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Timestamp, &r.Kind, &r.Owner, &r.Plan, &r.Count, &r.TopValue, &r.TotalValue, &r.DurationMs, &params)
	if err != nil {
		return nil
	}
	r.Params = json.RawMessage(params)
	return &r
}

// DeleteRun removes a run and its advisory rows.
func (d *DB) DeleteRun(id string) error {
	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM advisory_results WHERE run_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM compute_runs WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

// ClearRuns deletes runs older than the given number of days.
func (d *DB) ClearRuns(olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays).Format(time.RFC3339)

	tx, err := d.sql.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(
		"DELETE FROM advisory_results WHERE run_id IN (SELECT id FROM compute_runs WHERE timestamp < ?)", cutoff,
	); err != nil {
		return 0, err
	}
	res, err := tx.Exec("DELETE FROM compute_runs WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
