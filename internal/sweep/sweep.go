// Package sweep evaluates the zombies model over every point of a candidate
// grid for a list of seeds, writing one CSV of survivor counts per seed and
// a per-point summary across seeds.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/zombies.report/internal/grid"
	"github.com/banshee-data/zombies.report/internal/monitoring"
	"github.com/banshee-data/zombies.report/internal/sim"
)

// Config describes one full-grid sweep.
type Config struct {
	Grid   *grid.Grid
	Bounds grid.Bounds
	Seeds  []int64
	// Workers bounds concurrent simulator runs. Zero means 1.
	Workers int
	OutDir  string
	// Base supplies the fixed model parameters. Step sizes and seed are
	// overwritten per run.
	Base sim.Params
	// Progress, if set, is called after each run with the number of runs
	// finished and the total.
	Progress func(done, total int)
}

// Result holds one seed's survivor counts in grid order. Failed runs are -1.
type Result struct {
	Seed   int64
	Counts []int
	Failed int
	Path   string
}

// Report is the outcome of a sweep.
type Report struct {
	Results     []Result
	SummaryPath string
	Elapsed     time.Duration
}

// Validate checks that the sweep can run.
func (c *Config) Validate() error {
	if c.Grid == nil || c.Grid.Len() == 0 {
		return grid.ErrEmptyGrid
	}
	if err := c.Bounds.Validate(); err != nil {
		return err
	}
	if c.Bounds.Dims() != 2 || c.Grid.Dims() != 2 {
		return fmt.Errorf("sweep: zombie model takes 2 dimensions, got grid %d and bounds %d", c.Grid.Dims(), c.Bounds.Dims())
	}
	if len(c.Seeds) == 0 {
		return errors.New("sweep: no seeds")
	}
	if c.OutDir == "" {
		return errors.New("sweep: no output directory")
	}
	return nil
}

// SeedFileName returns the per-seed CSV name.
func SeedFileName(seed int64) string {
	return fmt.Sprintf("human_survival_seed%d.csv", seed)
}

// Run evaluates every grid point for each seed in turn. A failed simulator
// run is logged and left out of the CSV; only context cancellation or an
// output error stops the sweep.
func Run(ctx context.Context, runner sim.Runner, cfg Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("sweep: create output dir: %w", err)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	native, err := cfg.Bounds.ToNative(cfg.Grid.Points())
	if err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}

	start := time.Now()
	total := len(cfg.Seeds) * len(native)
	var (
		mu   sync.Mutex
		done int
	)
	report := &Report{}
	for _, seed := range cfg.Seeds {
		counts := make([]int, len(native))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, x := range native {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				p := cfg.Base
				p.ZombieStepSize, p.HumanStepSize, p.RandomSeed = x[0], x[1], seed
				p.CountsFile = ""
				n, err := runner.Run(gctx, p)
				if err != nil {
					if ctxErr := gctx.Err(); ctxErr != nil {
						return ctxErr
					}
					monitoring.Noticef("sweep", "seed %d point %d (zombie %g, human %g): %v", seed, i, x[0], x[1], err)
					n = -1
				}
				counts[i] = n

				mu.Lock()
				done++
				d := done
				mu.Unlock()
				if cfg.Progress != nil {
					cfg.Progress(d, total)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return report, fmt.Errorf("sweep: seed %d: %w", seed, err)
		}

		res := Result{Seed: seed, Counts: counts, Path: filepath.Join(cfg.OutDir, SeedFileName(seed))}
		for _, c := range counts {
			if c < 0 {
				res.Failed++
			}
		}
		if err := writeSeedCSV(res.Path, native, counts); err != nil {
			return report, err
		}
		report.Results = append(report.Results, res)
		monitoring.Logf("sweep: seed %d done, %d points, %d failed", seed, len(counts), res.Failed)
	}

	report.SummaryPath = filepath.Join(cfg.OutDir, "summary.csv")
	if err := writeSummaryCSV(report.SummaryPath, native, report.Results); err != nil {
		return report, err
	}
	report.Elapsed = time.Since(start)
	return report, nil
}
