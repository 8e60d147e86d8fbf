package data

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	ModeSingle = "single"
	ModeBatch  = "batch"

	runListLimitDefault = 50

	insertRun = `INSERT INTO prediction_run (
			mode, source, row_count, model_name, model_version,
			mean_prediction, features, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`

	selectRuns = `SELECT id, mode, source, row_count, model_name, model_version,
			mean_prediction, features, duration_ms, created_at
		FROM prediction_run
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	selectRunStats = `SELECT mode, COUNT(*), COALESCE(SUM(row_count), 0)
		FROM prediction_run
		GROUP BY mode`
)

// Run is a recorded prediction request.
type Run struct {
	ID           int64              `json:"id" yaml:"id"`
	Mode         string             `json:"mode" yaml:"mode"`
	Source       string             `json:"source" yaml:"source"`
	Rows         int                `json:"rows" yaml:"rows"`
	ModelName    string             `json:"model_name" yaml:"model_name"`
	ModelVersion string             `json:"model_version" yaml:"model_version"`
	Mean         float64            `json:"mean_prediction" yaml:"mean_prediction"`
	Features     map[string]float64 `json:"features,omitempty" yaml:"features,omitempty"`
	Duration     time.Duration      `json:"duration" yaml:"duration"`
	CreatedAt    time.Time          `json:"created_at" yaml:"created_at"`
}

// RunStats summarizes recorded runs per mode.
type RunStats struct {
	Runs map[string]int64 `json:"runs" yaml:"runs"`
	Rows map[string]int64 `json:"rows" yaml:"rows"`
}

// SaveRun records r and returns its ID. A zero CreatedAt is set to now.
func SaveRun(db *sql.DB, r *Run) (int64, error) {
	if db == nil {
		return 0, errDBNotInitialized
	}
	if r == nil {
		return 0, errors.New("run required")
	}
	if r.Mode != ModeSingle && r.Mode != ModeBatch {
		return 0, fmt.Errorf("invalid run mode: %q", r.Mode)
	}

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	var features sql.NullString
	if len(r.Features) > 0 {
		b, err := json.Marshal(r.Features)
		if err != nil {
			return 0, fmt.Errorf("encoding run features: %w", err)
		}
		features = sql.NullString{String: string(b), Valid: true}
	}

	var id int64
	err := db.QueryRow(rebind(db, insertRun),
		r.Mode, r.Source, r.Rows, r.ModelName, r.ModelVersion,
		r.Mean, features, r.Duration.Milliseconds(), r.CreatedAt.UnixMilli(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	r.ID = id
	return id, nil
}

// ListRuns returns the most recent runs, newest first.
func ListRuns(db *sql.DB, limit int) ([]*Run, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if limit <= 0 {
		limit = runListLimitDefault
	}

	rows, err := db.Query(rebind(db, selectRuns), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	list := make([]*Run, 0)
	for rows.Next() {
		r := &Run{}
		var features sql.NullString
		var durationMS, createdMS int64
		if err := rows.Scan(&r.ID, &r.Mode, &r.Source, &r.Rows, &r.ModelName, &r.ModelVersion,
			&r.Mean, &features, &durationMS, &createdMS); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		if features.Valid && features.String != "" {
			if err := json.Unmarshal([]byte(features.String), &r.Features); err != nil {
				return nil, fmt.Errorf("decoding features of run %d: %w", r.ID, err)
			}
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.CreatedAt = time.UnixMilli(createdMS).UTC()
		list = append(list, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return list, nil
}

// GetRunStats returns run and row counts per mode.
func GetRunStats(db *sql.DB) (*RunStats, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectRunStats)
	if err != nil {
		return nil, fmt.Errorf("failed to query run stats: %w", err)
	}
	defer rows.Close()

	s := &RunStats{
		Runs: map[string]int64{ModeSingle: 0, ModeBatch: 0},
		Rows: map[string]int64{ModeSingle: 0, ModeBatch: 0},
	}
	for rows.Next() {
		var mode string
		var runs, count int64
		if err := rows.Scan(&mode, &runs, &count); err != nil {
			return nil, fmt.Errorf("failed to scan run stats: %w", err)
		}
		s.Runs[mode] = runs
		s.Rows[mode] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run stats: %w", err)
	}
	return s, nil
}
