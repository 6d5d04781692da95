// Package bo runs Bayesian optimisation of the zombies model: an initial
// random design, then rounds of surrogate fitting and Thompson-sampled batch
// selection, with every evaluation persisted as a task.
package bo

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/zombies.report/internal/batch"
	"github.com/banshee-data/zombies.report/internal/db"
	"github.com/banshee-data/zombies.report/internal/heatmap"
	"github.com/banshee-data/zombies.report/internal/monitoring"
	"github.com/banshee-data/zombies.report/internal/sim"
	"github.com/banshee-data/zombies.report/internal/surrogate"
)

// Status represents the current state of a Loop.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Store persists experiments and their tasks. *db.DB implements it.
type Store interface {
	SetExperimentStatus(id, status string) error
	InsertTasks(experimentID string, round int, inputs []batch.Input) ([]db.Task, error)
	MarkRunning(taskID string) error
	CompleteTask(taskID string, result float64) error
	FailTask(taskID, reason string) error
	FailUnfinished(experimentID, reason string) (int64, error)
	Tasks(experimentID string) ([]db.Task, error)
	Observations(experimentID string) ([][]float64, []float64, error)
	NextSeedCounters(experimentID string) (batch.SeedCounter, error)
	RecordRound(r db.Round) error
}

// Best is the grid point with the highest predicted survivor count.
type Best struct {
	Index  int       `json:"index"`
	Native []float64 `json:"native"`
	Mean   float64   `json:"mean"`
}

// State is a snapshot of loop progress.
type State struct {
	Status      Status    `json:"status"`
	Round       int       `json:"round"`
	Rounds      int       `json:"rounds"`
	TasksTotal  int       `json:"tasks_total"`
	TasksDone   int       `json:"tasks_done"`
	TasksFailed int       `json:"tasks_failed"`
	Best        *Best     `json:"best,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
}

// Loop drives one experiment. A Loop is single use; Run may be called once.
type Loop struct {
	mu    sync.Mutex
	state State

	opts         Options
	store        Store
	runner       sim.Runner
	experimentID string
	rng          *rand.Rand
	selector     *batch.Selector
}

// New returns an idle loop for experimentID.
func New(store Store, runner sim.Runner, experimentID string, opts Options) (*Loop, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Loop{
		state:        State{Status: StatusIdle, Rounds: opts.Rounds},
		opts:         opts,
		store:        store,
		runner:       runner,
		experimentID: experimentID,
		rng:          rand.New(batch.NewSource(opts.Seed)),
		selector:     batch.NewSelector(batch.NewEigenSampler(opts.Seed + 1)),
	}, nil
}

// State returns a copy of the current progress.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.state
	if s.Best != nil {
		b := *s.Best
		b.Native = append([]float64(nil), b.Native...)
		s.Best = &b
	}
	return s
}

func (l *Loop) update(f func(s *State)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f(&l.state)
}

// Run executes the remaining rounds. An experiment with stored tasks resumes
// after its last round; tasks left queued or running by an interrupted run
// are marked failed first.
func (l *Loop) Run(ctx context.Context) (err error) {
	l.mu.Lock()
	if l.state.Status != StatusIdle {
		l.mu.Unlock()
		return fmt.Errorf("bo: loop already %s", l.state.Status)
	}
	l.state.Status = StatusRunning
	l.state.StartedAt = time.Now()
	l.mu.Unlock()

	defer func() {
		status := StatusComplete
		if err != nil {
			status = StatusError
		}
		l.update(func(s *State) {
			s.Status = status
			s.FinishedAt = time.Now()
			if err != nil {
				s.Error = err.Error()
			}
		})
		if serr := l.store.SetExperimentStatus(l.experimentID, string(status)); serr != nil && err == nil {
			err = serr
		}
	}()

	if err := l.store.SetExperimentStatus(l.experimentID, string(StatusRunning)); err != nil {
		return err
	}
	if n, err := l.store.FailUnfinished(l.experimentID, "interrupted"); err != nil {
		return err
	} else if n > 0 {
		monitoring.Noticef("bo", "marked %d unfinished tasks of %s as failed", n, l.experimentID)
	}

	start, err := l.nextRound()
	if err != nil {
		return err
	}
	for round := start; round <= l.opts.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.update(func(s *State) { s.Round = round })
		if err := l.runRound(ctx, round); err != nil {
			return fmt.Errorf("bo: round %d: %w", round, err)
		}
	}

	// Fit once more so the final report includes the last batch.
	if _, err := l.fitAndReport(l.opts.Rounds + 1); err != nil && !errors.Is(err, errNoObservations) {
		return err
	}
	return nil
}

// nextRound returns the first round without tasks.
func (l *Loop) nextRound() (int, error) {
	tasks, err := l.store.Tasks(l.experimentID)
	if err != nil {
		return 0, err
	}
	next := 0
	for _, t := range tasks {
		if t.Round+1 > next {
			next = t.Round + 1
		}
	}
	l.update(func(s *State) {
		s.TasksTotal = len(tasks)
		for _, t := range tasks {
			switch t.Status {
			case db.TaskComplete:
				s.TasksDone++
			case db.TaskFailed:
				s.TasksDone++
				s.TasksFailed++
			}
		}
	})
	return next, nil
}

func (l *Loop) runRound(ctx context.Context, round int) error {
	var (
		ids []int
		rec = db.Round{ExperimentID: l.experimentID, Round: round}
	)
	if round == 0 {
		ids = l.initialDesign()
	} else {
		fit, err := l.fitAndReport(round)
		if errors.Is(err, errNoObservations) {
			// Every earlier evaluation failed; start over with a fresh design.
			monitoring.Noticef("bo", "round %d has no observations, drawing a new initial design", round)
			ids = l.initialDesign()
		} else if err != nil {
			return err
		} else {
			before := monitoring.Covariance.Snapshot().Repairs
			ids, err = l.selector.SelectBatch(fit.pred.Mean, fit.pred.Cov, l.opts.BatchSize)
			if err != nil {
				return err
			}
			rec.Repaired = monitoring.Covariance.Snapshot().Repairs > before
			rec.Hyperparams = fit.gp.Hyperparams()
			lml := fit.gp.LogMarginalLikelihood()
			rec.LogLikelihood = &lml
			rec.ReportPath = fit.report.HTML
		}
	}
	rec.Selected = ids

	counter, err := l.store.NextSeedCounters(l.experimentID)
	if err != nil {
		return err
	}
	inputs, err := batch.GenerateInputs(l.opts.Grid, l.opts.Bounds, batch.Allocate(ids), counter, l.opts.Seeds)
	if err != nil {
		return err
	}
	tasks, err := l.store.InsertTasks(l.experimentID, round, inputs)
	if err != nil {
		return err
	}
	if err := l.store.RecordRound(rec); err != nil {
		return err
	}
	l.update(func(s *State) { s.TasksTotal += len(tasks) })
	monitoring.Logf("bo: round %d: %d selections, %d distinct points, %d tasks", round, len(ids), len(batch.Allocate(ids)), len(tasks))

	return l.evaluate(ctx, tasks)
}

// initialDesign picks InitialPoints distinct grid indices, each repeated
// Trials times.
func (l *Loop) initialDesign() []int {
	perm := l.rng.Perm(l.opts.Grid.Len())[:l.opts.InitialPoints]
	ids := make([]int, 0, len(perm)*l.opts.Trials)
	for _, ix := range perm {
		for i := 0; i < l.opts.Trials; i++ {
			ids = append(ids, ix)
		}
	}
	return ids
}

// evaluate runs tasks with at most Workers concurrent simulations. A failed
// simulation fails its task and the round carries on.
func (l *Loop) evaluate(ctx context.Context, tasks []db.Task) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Workers)
	for _, t := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := l.store.MarkRunning(t.ID); err != nil {
				return err
			}
			p := l.opts.Base
			p.ZombieStepSize, p.HumanStepSize = t.Native[0], t.Native[1]
			p.RandomSeed = t.Seed

			humans, err := l.runner.Run(gctx, p)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				monitoring.Noticef("bo", "task %s (grid %d, seed %d) failed: %v", t.ID, t.GridIndex, t.Seed, err)
				if ferr := l.store.FailTask(t.ID, err.Error()); ferr != nil {
					return ferr
				}
				l.update(func(s *State) { s.TasksDone++; s.TasksFailed++ })
				return nil
			}
			if err := l.store.CompleteTask(t.ID, float64(humans)); err != nil {
				return err
			}
			l.update(func(s *State) { s.TasksDone++ })
			return nil
		})
	}
	return g.Wait()
}

var errNoObservations = errors.New("bo: no completed evaluations to fit")

type fitResult struct {
	gp     *surrogate.GP
	pred   *surrogate.Prediction
	report heatmap.ReportFiles
}

// fitAndReport fits the surrogate to every completed task, predicts over the
// grid, updates Best and writes the round's heatmaps.
func (l *Loop) fitAndReport(round int) (*fitResult, error) {
	X, y, err := l.store.Observations(l.experimentID)
	if err != nil {
		return nil, err
	}
	if len(X) == 0 {
		return nil, errNoObservations
	}

	gp := surrogate.New(l.opts.Surrogate)
	if err := gp.Fit(X, y); err != nil {
		return nil, err
	}
	pred, err := gp.Predict(l.opts.Grid.Points())
	if err != nil {
		return nil, err
	}

	mean := pred.NativeMean()
	ix := floats.MaxIdx(mean)
	best := &Best{Index: ix, Native: l.opts.Bounds.ToNativePoint(l.opts.Grid.Point(ix)), Mean: mean[ix]}
	l.update(func(s *State) { s.Best = best })

	res := &fitResult{gp: gp, pred: pred}
	if l.opts.OutputDir != "" {
		res.report, err = heatmap.Report(l.opts.OutputDir, round, l.opts.Grid, l.opts.Bounds, pred, X)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}
