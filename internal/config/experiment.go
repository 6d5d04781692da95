package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/zombies.report/internal/grid"
	"github.com/banshee-data/zombies.report/internal/surrogate"
)

// DefaultConfigPath is where the CLI looks for an experiment file when none
// is given.
const DefaultConfigPath = "config/experiment.defaults.yaml"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// ExperimentConfig describes one Bayesian-optimisation experiment over the
// zombies model. Every field is optional; the Get* methods supply defaults,
// so partial files are safe.
type ExperimentConfig struct {
	Name      *string `json:"name,omitempty" yaml:"name,omitempty"`
	Database  *string `json:"database,omitempty" yaml:"database,omitempty"`
	OutputDir *string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`

	// Design
	GridSize      *int         `json:"grid_size,omitempty" yaml:"grid_size,omitempty"`
	Bounds        *grid.Bounds `json:"bounds,omitempty" yaml:"bounds,omitempty"`
	Rounds        *int         `json:"rounds,omitempty" yaml:"rounds,omitempty"`
	InitialPoints *int         `json:"initial_points,omitempty" yaml:"initial_points,omitempty"`
	BatchSize     *int         `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	Trials        *int         `json:"trials,omitempty" yaml:"trials,omitempty"`
	Seed          *uint64      `json:"seed,omitempty" yaml:"seed,omitempty"`
	Seeds         *string      `json:"seeds,omitempty" yaml:"seeds,omitempty"` // range spec like "0:999:1"

	// Surrogate
	Kernel              *string  `json:"kernel,omitempty" yaml:"kernel,omitempty"`
	Lengthscale         *float64 `json:"lengthscale,omitempty" yaml:"lengthscale,omitempty"`
	SignalVariance      *float64 `json:"signal_variance,omitempty" yaml:"signal_variance,omitempty"`
	NoiseVariance       *float64 `json:"noise_variance,omitempty" yaml:"noise_variance,omitempty"`
	Heteroskedastic     *bool    `json:"heteroskedastic,omitempty" yaml:"heteroskedastic,omitempty"`
	OptimizeHyperparams *bool    `json:"optimize_hyperparams,omitempty" yaml:"optimize_hyperparams,omitempty"`
	LogOutputs          *bool    `json:"log_outputs,omitempty" yaml:"log_outputs,omitempty"`

	// Simulator
	Command      *string `json:"command,omitempty" yaml:"command,omitempty"`
	ProjectRoot  *string `json:"project_root,omitempty" yaml:"project_root,omitempty"`
	InstanceRoot *string `json:"instance_root,omitempty" yaml:"instance_root,omitempty"`
	Workers      *int    `json:"workers,omitempty" yaml:"workers,omitempty"`
	RunTimeout   *string `json:"run_timeout,omitempty" yaml:"run_timeout,omitempty"` // duration string like "10m"
	StopAt       *int    `json:"stop_at,omitempty" yaml:"stop_at,omitempty"`
	HumanCount   *int    `json:"human_count,omitempty" yaml:"human_count,omitempty"`
	ZombieCount  *int    `json:"zombie_count,omitempty" yaml:"zombie_count,omitempty"`
	WorldWidth   *int    `json:"world_width,omitempty" yaml:"world_width,omitempty"`
	WorldHeight  *int    `json:"world_height,omitempty" yaml:"world_height,omitempty"`
}

// EmptyExperimentConfig returns an ExperimentConfig with all fields set to nil.
func EmptyExperimentConfig() *ExperimentConfig {
	return &ExperimentConfig{}
}

// LoadExperimentConfig reads a JSON (.json) or YAML (.yaml, .yml) experiment
// file and validates it.
func LoadExperimentConfig(path string) (*ExperimentConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyExperimentConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *ExperimentConfig) Validate() error {
	positive := []struct {
		name string
		v    *int
	}{
		{"grid_size", c.GridSize},
		{"rounds", c.Rounds},
		{"initial_points", c.InitialPoints},
		{"batch_size", c.BatchSize},
		{"trials", c.Trials},
		{"workers", c.Workers},
		{"stop_at", c.StopAt},
		{"world_width", c.WorldWidth},
		{"world_height", c.WorldHeight},
	}
	for _, p := range positive {
		if p.v != nil && *p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, *p.v)
		}
	}
	if c.HumanCount != nil && *c.HumanCount < 0 {
		return fmt.Errorf("human_count must be non-negative, got %d", *c.HumanCount)
	}
	if c.ZombieCount != nil && *c.ZombieCount < 0 {
		return fmt.Errorf("zombie_count must be non-negative, got %d", *c.ZombieCount)
	}

	if c.GridSize != nil {
		if total := pow(*c.GridSize, c.GetBounds().Dims()); total > grid.MaxPoints {
			return fmt.Errorf("grid_size %d gives %d candidates (max %d)", *c.GridSize, total, grid.MaxPoints)
		}
	}
	if c.Bounds != nil {
		if err := c.Bounds.Validate(); err != nil {
			return err
		}
	}
	if c.Seeds != nil {
		if _, err := grid.ParseSeeds(*c.Seeds); err != nil {
			return fmt.Errorf("invalid seeds %q: %w", *c.Seeds, err)
		}
	}
	if c.Kernel != nil {
		if _, err := surrogate.ParseKernel(*c.Kernel); err != nil {
			return err
		}
	}
	if c.RunTimeout != nil && *c.RunTimeout != "" {
		if _, err := time.ParseDuration(*c.RunTimeout); err != nil {
			return fmt.Errorf("invalid run_timeout '%s': %w", *c.RunTimeout, err)
		}
	}
	if err := c.GetHyperparams().Validate(c.GetBounds().Dims()); err != nil {
		return err
	}
	return nil
}

func pow(n, d int) int {
	out := 1
	for i := 0; i < d; i++ {
		out *= n
	}
	return out
}

// GetName returns the experiment name or the default.
func (c *ExperimentConfig) GetName() string {
	if c.Name == nil || *c.Name == "" {
		return "zombies"
	}
	return *c.Name
}

// GetDatabase returns the sqlite path or the default.
func (c *ExperimentConfig) GetDatabase() string {
	if c.Database == nil || *c.Database == "" {
		return "zombies.db"
	}
	return *c.Database
}

// GetOutputDir returns the report directory or the default.
func (c *ExperimentConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "results"
	}
	return *c.OutputDir
}

// GetGridSize returns the points per axis of the candidate grid.
func (c *ExperimentConfig) GetGridSize() int {
	if c.GridSize == nil {
		return 30
	}
	return *c.GridSize
}

// GetBounds returns the native parameter bounds or the zombie model defaults.
func (c *ExperimentConfig) GetBounds() grid.Bounds {
	if c.Bounds == nil {
		return grid.ZombieBounds()
	}
	return *c.Bounds
}

// GetRounds returns the number of selection rounds after the initial design.
func (c *ExperimentConfig) GetRounds() int {
	if c.Rounds == nil {
		return 5
	}
	return *c.Rounds
}

// GetInitialPoints returns the size of the random initial design.
func (c *ExperimentConfig) GetInitialPoints() int {
	if c.InitialPoints == nil {
		return 10
	}
	return *c.InitialPoints
}

// GetBatchSize returns the Thompson draws per round.
func (c *ExperimentConfig) GetBatchSize() int {
	if c.BatchSize == nil {
		return 10
	}
	return *c.BatchSize
}

// GetTrials returns the replicates per initial design point.
func (c *ExperimentConfig) GetTrials() int {
	if c.Trials == nil {
		return 3
	}
	return *c.Trials
}

// GetSeed returns the seed for the design and Thompson sampling streams.
func (c *ExperimentConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 1234
	}
	return *c.Seed
}

// GetSeeds returns the simulator seed pool. Each grid point consumes seeds
// from the front of the pool in order.
func (c *ExperimentConfig) GetSeeds() []int64 {
	if c.Seeds != nil && *c.Seeds != "" {
		if seeds, err := grid.ParseSeeds(*c.Seeds); err == nil {
			return seeds
		}
	}
	seeds := make([]int64, 1000)
	for i := range seeds {
		seeds[i] = int64(i)
	}
	return seeds
}

// GetKernel returns the surrogate kernel or the default.
func (c *ExperimentConfig) GetKernel() surrogate.Kernel {
	if c.Kernel == nil {
		return surrogate.Matern52
	}
	k, err := surrogate.ParseKernel(*c.Kernel)
	if err != nil {
		return surrogate.Matern52
	}
	return k
}

// GetHyperparams returns the starting hyperparameters, one shared
// lengthscale per bounded dimension.
func (c *ExperimentConfig) GetHyperparams() surrogate.Hyperparams {
	hp := surrogate.DefaultHyperparams(c.GetBounds().Dims())
	if c.Lengthscale != nil {
		for i := range hp.Lengthscales {
			hp.Lengthscales[i] = *c.Lengthscale
		}
	}
	if c.SignalVariance != nil {
		hp.SignalVariance = *c.SignalVariance
	}
	if c.NoiseVariance != nil {
		hp.NoiseVariance = *c.NoiseVariance
	}
	return hp
}

// GetHeteroskedastic reports whether replicate variances drive the noise.
func (c *ExperimentConfig) GetHeteroskedastic() bool {
	if c.Heteroskedastic == nil {
		return true
	}
	return *c.Heteroskedastic
}

// GetOptimizeHyperparams reports whether hyperparameters are refitted each round.
func (c *ExperimentConfig) GetOptimizeHyperparams() bool {
	if c.OptimizeHyperparams == nil {
		return true
	}
	return *c.OptimizeHyperparams
}

// GetLogOutputs reports whether the surrogate models log(1+survivors).
func (c *ExperimentConfig) GetLogOutputs() bool {
	if c.LogOutputs == nil {
		return false
	}
	return *c.LogOutputs
}

// GetCommand returns the simulator command line.
func (c *ExperimentConfig) GetCommand() []string {
	if c.Command == nil || strings.TrimSpace(*c.Command) == "" {
		return []string{"bash", "scripts/run_zombies.sh"}
	}
	return strings.Fields(*c.Command)
}

// GetProjectRoot returns the directory passed to the simulator as its
// project root.
func (c *ExperimentConfig) GetProjectRoot() string {
	if c.ProjectRoot == nil || *c.ProjectRoot == "" {
		return "."
	}
	return *c.ProjectRoot
}

// GetInstanceRoot returns the parent of per-run instance directories.
func (c *ExperimentConfig) GetInstanceRoot() string {
	if c.InstanceRoot == nil || *c.InstanceRoot == "" {
		return "instances"
	}
	return *c.InstanceRoot
}

// GetWorkers returns the number of concurrent simulator runs.
func (c *ExperimentConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}

// GetRunTimeout parses and returns the per-run timeout.
func (c *ExperimentConfig) GetRunTimeout() time.Duration {
	if c.RunTimeout == nil || *c.RunTimeout == "" {
		return 10 * time.Minute
	}
	d, err := time.ParseDuration(*c.RunTimeout)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// GetStopAt returns the simulated tick count.
func (c *ExperimentConfig) GetStopAt() int {
	if c.StopAt == nil {
		return 50
	}
	return *c.StopAt
}

// GetHumanCount returns the initial human population.
func (c *ExperimentConfig) GetHumanCount() int {
	if c.HumanCount == nil {
		return 4000
	}
	return *c.HumanCount
}

// GetZombieCount returns the initial zombie population.
func (c *ExperimentConfig) GetZombieCount() int {
	if c.ZombieCount == nil {
		return 200
	}
	return *c.ZombieCount
}

// GetWorldWidth returns the world width in cells.
func (c *ExperimentConfig) GetWorldWidth() int {
	if c.WorldWidth == nil {
		return 200
	}
	return *c.WorldWidth
}

// GetWorldHeight returns the world height in cells.
func (c *ExperimentConfig) GetWorldHeight() int {
	if c.WorldHeight == nil {
		return 200
	}
	return *c.WorldHeight
}

// Resolved returns a copy with every field populated from the Get* methods.
// It is what gets stored alongside an experiment.
func (c *ExperimentConfig) Resolved() *ExperimentConfig {
	b := c.GetBounds()
	hp := c.GetHyperparams()
	seeds := c.GetSeeds()
	seedSpec := fmt.Sprintf("%d:%d:1", seeds[0], seeds[len(seeds)-1])
	if c.Seeds != nil && *c.Seeds != "" {
		seedSpec = *c.Seeds
	}
	return &ExperimentConfig{
		Name:                ptr(c.GetName()),
		Database:            ptr(c.GetDatabase()),
		OutputDir:           ptr(c.GetOutputDir()),
		GridSize:            ptr(c.GetGridSize()),
		Bounds:              &grid.Bounds{Lower: append([]float64(nil), b.Lower...), Upper: append([]float64(nil), b.Upper...)},
		Rounds:              ptr(c.GetRounds()),
		InitialPoints:       ptr(c.GetInitialPoints()),
		BatchSize:           ptr(c.GetBatchSize()),
		Trials:              ptr(c.GetTrials()),
		Seed:                ptr(c.GetSeed()),
		Seeds:               ptr(seedSpec),
		Kernel:              ptr(string(c.GetKernel())),
		Lengthscale:         ptr(hp.Lengthscales[0]),
		SignalVariance:      ptr(hp.SignalVariance),
		NoiseVariance:       ptr(hp.NoiseVariance),
		Heteroskedastic:     ptr(c.GetHeteroskedastic()),
		OptimizeHyperparams: ptr(c.GetOptimizeHyperparams()),
		LogOutputs:          ptr(c.GetLogOutputs()),
		Command:             ptr(strings.Join(c.GetCommand(), " ")),
		ProjectRoot:         ptr(c.GetProjectRoot()),
		InstanceRoot:        ptr(c.GetInstanceRoot()),
		Workers:             ptr(c.GetWorkers()),
		RunTimeout:          ptr(c.GetRunTimeout().String()),
		StopAt:              ptr(c.GetStopAt()),
		HumanCount:          ptr(c.GetHumanCount()),
		ZombieCount:         ptr(c.GetZombieCount()),
		WorldWidth:          ptr(c.GetWorldWidth()),
		WorldHeight:         ptr(c.GetWorldHeight()),
	}
}

func ptr[T any](v T) *T { return &v }
