package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/zombies.report/internal/config"
	"github.com/banshee-data/zombies.report/internal/grid"
	"github.com/banshee-data/zombies.report/internal/sim"
)

func handleEval(args []string) {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	configPath := fs.String("config", "", "Optional experiment config for world size and command")
	zombieStep := fs.Float64("zombie-step", 0.5, "Zombie step size")
	humanStep := fs.Float64("human-step", 1, "Human step size")
	trials := fs.Int("trials", 3, "Number of runs to average")
	seedBase := fs.Int64("seed", 0, "Seed of the first run; later runs use seed+1, seed+2, ...")
	keep := fs.Bool("keep-instances", false, "Keep simulator instance directories")
	fs.Parse(args)

	if *trials <= 0 {
		log.Fatal("--trials must be positive")
	}

	cfg := config.EmptyExperimentConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadExperimentConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	base := sim.MakeParams(*humanStep, *zombieStep, *seedBase)
	base.StopAt = float64(cfg.GetStopAt())
	base.HumanCount = cfg.GetHumanCount()
	base.ZombieCount = cfg.GetZombieCount()
	base.WorldWidth = cfg.GetWorldWidth()
	base.WorldHeight = cfg.GetWorldHeight()
	if err := base.Validate(); err != nil {
		log.Fatalf("Invalid parameters: %v", err)
	}

	runner := &sim.CommandRunner{
		Command:       cfg.GetCommand(),
		ProjectRoot:   cfg.GetProjectRoot(),
		InstanceRoot:  cfg.GetInstanceRoot(),
		Timeout:       cfg.GetRunTimeout(),
		KeepInstances: *keep,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := sim.MeanOverTrials(ctx, runner, base, *trials, *seedBase)
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}

	fmt.Println(describeTrials(cfg, *zombieStep, *humanStep, res))
}

// describeTrials summarises the runs and locates the point on the
// experiment's candidate grid.
func describeTrials(cfg *config.ExperimentConfig, zombieStep, humanStep float64, res sim.Trials) string {
	counts := make([]float64, len(res.Counts))
	for i, c := range res.Counts {
		counts[i] = float64(c)
	}
	sd := 0.0
	if len(counts) > 1 {
		sd = stat.StdDev(counts, nil)
	}

	out := fmt.Sprintf("zombie_step=%g human_step=%g runs=%d mean=%.2f sd=%.2f counts=%v",
		zombieStep, humanStep, len(res.Counts), res.Mean, sd, res.Counts)

	b := cfg.GetBounds()
	g, err := grid.NewMeshGrid(cfg.GetGridSize(), b.Dims())
	if err != nil || b.Dims() != 2 {
		return out
	}
	ix := g.Nearest(b.ToUnitPoint([]float64{zombieStep, humanStep}))
	nearest := b.ToNativePoint(g.Point(ix))
	return out + fmt.Sprintf(" nearest_grid=%d (%.4f, %.4f)", ix, nearest[0], nearest[1])
}
