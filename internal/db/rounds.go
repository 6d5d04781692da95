package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/zombies.report/internal/surrogate"
)

// Round summarises one selection round of an experiment.
type Round struct {
	ExperimentID  string                `json:"experiment_id"`
	Round         int                   `json:"round"`
	Selected      []int                 `json:"selected"`
	Hyperparams   surrogate.Hyperparams `json:"hyperparams"`
	LogLikelihood *float64              `json:"log_likelihood,omitempty"`
	// Repaired is set when the posterior covariance needed PSD repair.
	Repaired   bool      `json:"repaired"`
	ReportPath string    `json:"report_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordRound stores or replaces the summary of a round.
func (db *DB) RecordRound(r Round) error {
	selected, err := encodeJSON(r.Selected)
	if err != nil {
		return err
	}
	hp, err := encodeJSON(r.Hyperparams)
	if err != nil {
		return err
	}
	var lml sql.NullFloat64
	if r.LogLikelihood != nil {
		lml = sql.NullFloat64{Float64: *r.LogLikelihood, Valid: true}
	}
	_, err = db.Exec(`INSERT OR REPLACE INTO rounds
		(experiment_id, round, selected_json, hyperparams_json, log_likelihood, repaired, report_path, created_unix_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ExperimentID, r.Round, selected, hp, lml, r.Repaired, r.ReportPath, nowNanos())
	if err != nil {
		return fmt.Errorf("record round %d: %w", r.Round, err)
	}
	return nil
}

// Rounds returns the round summaries of an experiment in round order.
func (db *DB) Rounds(experimentID string) ([]Round, error) {
	rows, err := db.Query(`SELECT round, selected_json, hyperparams_json, log_likelihood, repaired, report_path, created_unix_ns
		FROM rounds WHERE experiment_id = ? ORDER BY round`, experimentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Round
	for rows.Next() {
		var (
			r                Round
			selected, hpJSON string
			lml              sql.NullFloat64
			created          int64
		)
		if err := rows.Scan(&r.Round, &selected, &hpJSON, &lml, &r.Repaired, &r.ReportPath, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(selected), &r.Selected); err != nil {
			return nil, fmt.Errorf("decode selection: %w", err)
		}
		if err := json.Unmarshal([]byte(hpJSON), &r.Hyperparams); err != nil {
			return nil, fmt.Errorf("decode hyperparams: %w", err)
		}
		if lml.Valid {
			v := lml.Float64
			r.LogLikelihood = &v
		}
		r.ExperimentID = experimentID
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
