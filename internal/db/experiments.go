package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("db: not found")

// Experiment is one optimisation run over the zombies model.
type Experiment struct {
	ID         string    `json:"experiment_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	ConfigJSON string    `json:"config_json"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateExperiment stores a new experiment with a fresh id. configJSON is the
// resolved configuration snapshot.
func (db *DB) CreateExperiment(name string, configJSON []byte) (*Experiment, error) {
	if len(configJSON) == 0 {
		configJSON = []byte("{}")
	}
	e := &Experiment{
		ID:         uuid.NewString(),
		Name:       name,
		Status:     "idle",
		ConfigJSON: string(configJSON),
		CreatedAt:  time.Now().UTC(),
	}
	_, err := db.Exec(`INSERT INTO experiments (experiment_id, name, status, config_json, created_unix_ns)
		VALUES (?, ?, ?, ?, ?)`, e.ID, e.Name, e.Status, e.ConfigJSON, e.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("insert experiment: %w", err)
	}
	return e, nil
}

// GetExperiment returns the experiment with id, or ErrNotFound.
func (db *DB) GetExperiment(id string) (*Experiment, error) {
	row := db.QueryRow(`SELECT experiment_id, name, status, config_json, created_unix_ns
		FROM experiments WHERE experiment_id = ?`, id)
	e, err := scanExperiment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("experiment %s: %w", id, ErrNotFound)
	}
	return e, err
}

// Experiments lists experiments, newest first.
func (db *DB) Experiments() ([]Experiment, error) {
	rows, err := db.Query(`SELECT experiment_id, name, status, config_json, created_unix_ns
		FROM experiments ORDER BY created_unix_ns DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Experiment
	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// SetExperimentStatus records the loop status of an experiment.
func (db *DB) SetExperimentStatus(id, status string) error {
	res, err := db.Exec(`UPDATE experiments SET status = ? WHERE experiment_id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update experiment status: %w", err)
	}
	return expectOne(res, "experiment "+id)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanExperiment(s scanner) (*Experiment, error) {
	var (
		e       Experiment
		created int64
	)
	if err := s.Scan(&e.ID, &e.Name, &e.Status, &e.ConfigJSON, &created); err != nil {
		return nil, err
	}
	e.CreatedAt = time.Unix(0, created).UTC()
	return &e, nil
}

func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
