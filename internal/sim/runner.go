package sim

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/zombies.report/internal/monitoring"
)

// Runner evaluates the model once and returns the surviving humans.
type Runner interface {
	Run(ctx context.Context, p Params) (int, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, p Params) (int, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, p Params) (int, error) { return f(ctx, p) }

// DefaultCommand launches the model through its wrapper script.
var DefaultCommand = []string{"bash", "scripts/run_zombies.sh"}

// CountsFileName is the counts file written inside each instance directory
// when Params.CountsFile is empty.
const CountsFileName = "counts.csv"

// CommandRunner runs the model as an external process:
//
//	<Command...> <payload-json> <project-root> <instance-dir>
//
// Each run gets a fresh instance directory under InstanceRoot holding the
// process's out.txt and err.txt.
type CommandRunner struct {
	Command      []string
	ProjectRoot  string
	InstanceRoot string
	// Timeout bounds one run. Zero means no limit beyond ctx.
	Timeout time.Duration
	// KeepInstances leaves instance directories in place after a
	// successful run. Failed runs are always kept for inspection.
	KeepInstances bool
}

// NewCommandRunner returns a runner for the default wrapper script.
func NewCommandRunner(projectRoot, instanceRoot string) *CommandRunner {
	return &CommandRunner{
		Command:      append([]string(nil), DefaultCommand...),
		ProjectRoot:  projectRoot,
		InstanceRoot: instanceRoot,
	}
}

// Run executes one simulation and parses its counts file.
func (r *CommandRunner) Run(ctx context.Context, p Params) (int, error) {
	if len(r.Command) == 0 {
		return 0, fmt.Errorf("sim: no command configured")
	}
	if err := p.Validate(); err != nil {
		return 0, fmt.Errorf("sim: %w", err)
	}

	instance := filepath.Join(r.InstanceRoot, "instance_"+uuid.NewString())
	if err := os.MkdirAll(instance, 0755); err != nil {
		return 0, fmt.Errorf("sim: create instance dir: %w", err)
	}
	if p.CountsFile == "" {
		p.CountsFile = filepath.Join(instance, CountsFileName)
	}
	if err := os.Remove(p.CountsFile); err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("sim: remove stale counts file: %w", err)
	}

	payload, err := p.Payload()
	if err != nil {
		return 0, fmt.Errorf("sim: %w", err)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	stdout, err := os.Create(filepath.Join(instance, "out.txt"))
	if err != nil {
		return 0, fmt.Errorf("sim: %w", err)
	}
	defer stdout.Close()
	stderr, err := os.Create(filepath.Join(instance, "err.txt"))
	if err != nil {
		return 0, fmt.Errorf("sim: %w", err)
	}
	defer stderr.Close()

	args := append(append([]string(nil), r.Command[1:]...), payload, r.ProjectRoot, instance)
	cmd := exec.CommandContext(ctx, r.Command[0], args...)
	cmd.Dir = r.ProjectRoot
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		monitoring.Noticef("sim", "run seed=%d human=%g zombie=%g failed after %s, see %s",
			p.RandomSeed, p.HumanStepSize, p.ZombieStepSize, time.Since(start).Round(time.Millisecond), instance)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, fmt.Errorf("sim: %w", ctxErr)
		}
		return 0, fmt.Errorf("sim: model exited: %w", err)
	}

	f, err := os.Open(p.CountsFile)
	if err != nil {
		return 0, fmt.Errorf("sim: open counts file: %w", err)
	}
	humans, err := ParseCounts(f)
	f.Close()
	if err != nil {
		return 0, err
	}
	if err := os.Remove(p.CountsFile); err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("sim: remove counts file: %w", err)
	}
	if !r.KeepInstances {
		stdout.Close()
		stderr.Close()
		if err := os.RemoveAll(instance); err != nil {
			monitoring.Noticef("sim", "failed to remove %s: %v", instance, err)
		}
	}
	return humans, nil
}

// Trials is the outcome of repeated runs at one parameter point.
type Trials struct {
	Counts []int
	Mean   float64
}

// MeanOverTrials runs the model n times at base with seeds
// seedBase..seedBase+n-1 and averages the surviving humans. Runs are
// sequential and stop at the first error.
func MeanOverTrials(ctx context.Context, runner Runner, base Params, n int, seedBase int64) (Trials, error) {
	if n <= 0 {
		return Trials{}, fmt.Errorf("sim: trials must be positive, got %d", n)
	}
	counts := make([]int, n)
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return Trials{}, err
		}
		p := base
		p.RandomSeed = seedBase + int64(i)
		p.RunNumber = i + 1
		c, err := runner.Run(ctx, p)
		if err != nil {
			return Trials{}, fmt.Errorf("trial %d (seed %d): %w", i+1, p.RandomSeed, err)
		}
		counts[i] = c
		vals[i] = float64(c)
	}
	return Trials{Counts: counts, Mean: stat.Mean(vals, nil)}, nil
}
