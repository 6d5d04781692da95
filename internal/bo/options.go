package bo

import (
	"fmt"

	"github.com/banshee-data/zombies.report/internal/config"
	"github.com/banshee-data/zombies.report/internal/grid"
	"github.com/banshee-data/zombies.report/internal/sim"
	"github.com/banshee-data/zombies.report/internal/surrogate"
)

// Options configures a Loop.
type Options struct {
	Grid   *grid.Grid
	Bounds grid.Bounds

	// Rounds is the number of Thompson-sampling rounds after the initial
	// design (round 0).
	Rounds        int
	InitialPoints int
	BatchSize     int
	// Trials is the replicate count per initial design point.
	Trials  int
	Workers int
	// Seed drives the initial design and the Thompson draws.
	Seed uint64
	// Seeds is the simulator seed pool shared by all grid points.
	Seeds []int64

	Surrogate surrogate.Options
	Base      sim.Params

	// OutputDir receives per-round heatmap reports. Empty disables them.
	OutputDir string
}

// Validate checks that the options describe a runnable experiment.
func (o Options) Validate() error {
	if o.Grid == nil || o.Grid.Len() == 0 {
		return grid.ErrEmptyGrid
	}
	if err := o.Bounds.Validate(); err != nil {
		return err
	}
	if o.Bounds.Dims() != 2 || o.Grid.Dims() != 2 {
		return fmt.Errorf("bo: zombie model takes 2 dimensions, got grid %d and bounds %d", o.Grid.Dims(), o.Bounds.Dims())
	}
	if o.Rounds < 0 {
		return fmt.Errorf("bo: rounds must be non-negative, got %d", o.Rounds)
	}
	if o.InitialPoints <= 0 || o.InitialPoints > o.Grid.Len() {
		return fmt.Errorf("bo: initial points must be in [1,%d], got %d", o.Grid.Len(), o.InitialPoints)
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("bo: batch size must be positive, got %d", o.BatchSize)
	}
	if o.Trials <= 0 {
		return fmt.Errorf("bo: trials must be positive, got %d", o.Trials)
	}
	if len(o.Seeds) < o.Trials {
		return fmt.Errorf("bo: seed pool of %d is smaller than trials %d", len(o.Seeds), o.Trials)
	}
	return o.Base.Validate()
}

// OptionsFromConfig builds loop options from an experiment configuration.
func OptionsFromConfig(cfg *config.ExperimentConfig) (Options, error) {
	b := cfg.GetBounds()
	g, err := grid.NewMeshGrid(cfg.GetGridSize(), b.Dims())
	if err != nil {
		return Options{}, err
	}

	base := sim.DefaultParams()
	base.StopAt = float64(cfg.GetStopAt())
	base.HumanCount = cfg.GetHumanCount()
	base.ZombieCount = cfg.GetZombieCount()
	base.WorldWidth = cfg.GetWorldWidth()
	base.WorldHeight = cfg.GetWorldHeight()

	o := Options{
		Grid:          g,
		Bounds:        b,
		Rounds:        cfg.GetRounds(),
		InitialPoints: cfg.GetInitialPoints(),
		BatchSize:     cfg.GetBatchSize(),
		Trials:        cfg.GetTrials(),
		Workers:       cfg.GetWorkers(),
		Seed:          cfg.GetSeed(),
		Seeds:         cfg.GetSeeds(),
		Surrogate: surrogate.Options{
			Kernel:          cfg.GetKernel(),
			Hyperparams:     cfg.GetHyperparams(),
			Heteroskedastic: cfg.GetHeteroskedastic(),
			Optimize:        cfg.GetOptimizeHyperparams(),
			LogOutputs:      cfg.GetLogOutputs(),
		},
		Base:      base,
		OutputDir: cfg.GetOutputDir(),
	}
	return o, o.Validate()
}
