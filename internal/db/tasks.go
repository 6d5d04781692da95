package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/zombies.report/internal/batch"
)

// TaskStatus is the lifecycle state of an evaluation task.
type TaskStatus string

const (
	TaskQueued   TaskStatus = "queued"
	TaskRunning  TaskStatus = "running"
	TaskComplete TaskStatus = "complete"
	TaskFailed   TaskStatus = "failed"
)

// Task is one simulator evaluation at a grid point with a given seed.
type Task struct {
	ID           string     `json:"task_id"`
	ExperimentID string     `json:"experiment_id"`
	Round        int        `json:"round"`
	GridIndex    int        `json:"grid_index"`
	Unit         []float64  `json:"unit"`
	Native       []float64  `json:"native"`
	Seed         int64      `json:"seed"`
	Status       TaskStatus `json:"status"`
	Result       *float64   `json:"result,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// InsertTasks queues one task per input in a single transaction and returns
// them in input order.
func (db *DB) InsertTasks(experimentID string, round int, inputs []batch.Input) ([]Task, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO tasks
		(task_id, experiment_id, round, grid_index, unit_json, native_json, seed, status, created_unix_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	out := make([]Task, 0, len(inputs))
	for _, in := range inputs {
		t := Task{
			ID:           uuid.NewString(),
			ExperimentID: experimentID,
			Round:        round,
			GridIndex:    in.Index,
			Unit:         append([]float64(nil), in.Unit...),
			Native:       append([]float64(nil), in.Native...),
			Seed:         in.Seed,
			Status:       TaskQueued,
			CreatedAt:    now,
		}
		unit, err := encodeJSON(t.Unit)
		if err != nil {
			return nil, err
		}
		native, err := encodeJSON(t.Native)
		if err != nil {
			return nil, err
		}
		if _, err := stmt.Exec(t.ID, experimentID, round, t.GridIndex, unit, native, t.Seed, t.Status, now.UnixNano()); err != nil {
			return nil, fmt.Errorf("insert task for grid index %d: %w", t.GridIndex, err)
		}
		out = append(out, t)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tasks: %w", err)
	}
	return out, nil
}

// MarkRunning moves a queued task to running.
func (db *DB) MarkRunning(taskID string) error {
	res, err := db.Exec(`UPDATE tasks SET status = ?, started_unix_ns = ? WHERE task_id = ? AND status = ?`,
		TaskRunning, nowNanos(), taskID, TaskQueued)
	if err != nil {
		return fmt.Errorf("mark task running: %w", err)
	}
	return expectOne(res, "queued task "+taskID)
}

// CompleteTask records the surviving humans for a task.
func (db *DB) CompleteTask(taskID string, result float64) error {
	res, err := db.Exec(`UPDATE tasks SET status = ?, result = ?, error = '', completed_unix_ns = ? WHERE task_id = ?`,
		TaskComplete, result, nowNanos(), taskID)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return expectOne(res, "task "+taskID)
}

// FailTask records a failed evaluation. Failed tasks are not retried.
func (db *DB) FailTask(taskID, reason string) error {
	res, err := db.Exec(`UPDATE tasks SET status = ?, error = ?, completed_unix_ns = ? WHERE task_id = ?`,
		TaskFailed, reason, nowNanos(), taskID)
	if err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	return expectOne(res, "task "+taskID)
}

// FailUnfinished marks every queued or running task of an experiment as
// failed, e.g. after an interrupted run. Returns the number of tasks changed.
func (db *DB) FailUnfinished(experimentID, reason string) (int64, error) {
	res, err := db.Exec(`UPDATE tasks SET status = ?, error = ?, completed_unix_ns = ?
		WHERE experiment_id = ? AND status IN (?, ?)`,
		TaskFailed, reason, nowNanos(), experimentID, TaskQueued, TaskRunning)
	if err != nil {
		return 0, fmt.Errorf("fail unfinished tasks: %w", err)
	}
	return res.RowsAffected()
}

const taskColumns = `task_id, experiment_id, round, grid_index, unit_json, native_json, seed, status,
	result, error, created_unix_ns, started_unix_ns, completed_unix_ns`

// Tasks returns every task of an experiment in insertion order.
func (db *DB) Tasks(experimentID string) ([]Task, error) {
	rows, err := db.Query(`SELECT `+taskColumns+` FROM tasks WHERE experiment_id = ? ORDER BY rowid`, experimentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Observations returns the unit coordinates and results of the completed
// tasks of an experiment, one row per task, so replicates appear repeatedly.
func (db *DB) Observations(experimentID string) (X [][]float64, y []float64, err error) {
	rows, err := db.Query(`SELECT unit_json, result FROM tasks
		WHERE experiment_id = ? AND status = ? ORDER BY rowid`, experimentID, TaskComplete)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			unitJSON string
			result   sql.NullFloat64
		)
		if err := rows.Scan(&unitJSON, &result); err != nil {
			return nil, nil, err
		}
		if !result.Valid {
			continue
		}
		var unit []float64
		if err := json.Unmarshal([]byte(unitJSON), &unit); err != nil {
			return nil, nil, fmt.Errorf("decode unit coordinates: %w", err)
		}
		X = append(X, unit)
		y = append(y, result.Float64)
	}
	return X, y, rows.Err()
}

// NextSeedCounters returns how many seeds each grid index has consumed. Every
// task counts, failed ones included, so a seed is never reused at a point.
func (db *DB) NextSeedCounters(experimentID string) (batch.SeedCounter, error) {
	rows, err := db.Query(`SELECT grid_index, COUNT(*) FROM tasks WHERE experiment_id = ? GROUP BY grid_index`, experimentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counter := batch.SeedCounter{}
	for rows.Next() {
		var ix, n int
		if err := rows.Scan(&ix, &n); err != nil {
			return nil, err
		}
		counter[ix] = n
	}
	return counter, rows.Err()
}

// TaskCounts returns the number of tasks per status for an experiment.
func (db *DB) TaskCounts(experimentID string) (map[TaskStatus]int, error) {
	rows, err := db.Query(`SELECT status, COUNT(*) FROM tasks WHERE experiment_id = ? GROUP BY status`, experimentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[TaskStatus]int)
	for rows.Next() {
		var (
			s TaskStatus
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}

func scanTask(s scanner) (Task, error) {
	var (
		t                  Task
		unitJSON, natJSON  string
		result             sql.NullFloat64
		created            int64
		started, completed sql.NullInt64
	)
	if err := s.Scan(&t.ID, &t.ExperimentID, &t.Round, &t.GridIndex, &unitJSON, &natJSON, &t.Seed, &t.Status,
		&result, &t.Error, &created, &started, &completed); err != nil {
		return Task{}, err
	}
	if err := json.Unmarshal([]byte(unitJSON), &t.Unit); err != nil {
		return Task{}, fmt.Errorf("decode unit coordinates: %w", err)
	}
	if err := json.Unmarshal([]byte(natJSON), &t.Native); err != nil {
		return Task{}, fmt.Errorf("decode native coordinates: %w", err)
	}
	if result.Valid {
		v := result.Float64
		t.Result = &v
	}
	t.CreatedAt = time.Unix(0, created).UTC()
	t.StartedAt = fromNanos(started)
	t.CompletedAt = fromNanos(completed)
	return t, nil
}
