// Command zombies-grid evaluates the zombies model over a full step-size grid
// for a list of seeds and renders the mean survivor surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/banshee-data/zombies.report/internal/config"
	"github.com/banshee-data/zombies.report/internal/grid"
	"github.com/banshee-data/zombies.report/internal/heatmap"
	"github.com/banshee-data/zombies.report/internal/sim"
	"github.com/banshee-data/zombies.report/internal/sweep"
	"github.com/banshee-data/zombies.report/internal/version"
)

var (
	configPath   = flag.String("config", "", "Optional experiment config for bounds, world and command")
	gridSize     = flag.Int("grid-size", 0, "Points per axis (default from config, 30)")
	seedSpec     = flag.String("seeds", "0:9:1", "Seeds as 'start:end:step' or a comma list")
	outDir       = flag.String("out", "grid_results", "Output directory")
	workers      = flag.Int("workers", 0, "Concurrent simulator runs (default from config, 4)")
	command      = flag.String("command", "", "Simulator command, space separated (default from config)")
	projectRoot  = flag.String("project-root", "", "Simulator project root (default from config)")
	instanceRoot = flag.String("instance-root", "", "Directory for simulator instances (default from config)")
	timeout      = flag.Duration("timeout", 0, "Timeout per simulator run (default from config, 10m)")
	noPlots      = flag.Bool("no-plots", false, "Skip the summary heatmaps")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("zombies-grid"))
		return
	}

	cfg := config.EmptyExperimentConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadExperimentConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}

	seeds, err := grid.ParseSeeds(*seedSpec)
	if err != nil {
		log.Fatalf("Invalid --seeds: %v", err)
	}
	b := cfg.GetBounds()
	g, err := grid.NewMeshGrid(cfg.GetGridSize(), b.Dims())
	if err != nil {
		log.Fatalf("Failed to build grid: %v", err)
	}

	base := sim.DefaultParams()
	base.StopAt = float64(cfg.GetStopAt())
	base.HumanCount = cfg.GetHumanCount()
	base.ZombieCount = cfg.GetZombieCount()
	base.WorldWidth = cfg.GetWorldWidth()
	base.WorldHeight = cfg.GetWorldHeight()

	runner := &sim.CommandRunner{
		Command:      cfg.GetCommand(),
		ProjectRoot:  cfg.GetProjectRoot(),
		InstanceRoot: cfg.GetInstanceRoot(),
		Timeout:      cfg.GetRunTimeout(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	total := g.Len() * len(seeds)
	step := max(total/20, 1)
	log.Printf("sweeping %d points x %d seeds with %d workers", g.Len(), len(seeds), cfg.GetWorkers())
	report, err := sweep.Run(ctx, runner, sweep.Config{
		Grid:    g,
		Bounds:  b,
		Seeds:   seeds,
		Workers: cfg.GetWorkers(),
		OutDir:  *outDir,
		Base:    base,
		Progress: func(done, total int) {
			if done%step == 0 || done == total {
				log.Printf("progress: %d/%d runs", done, total)
			}
		},
	})
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	failed := 0
	for _, r := range report.Results {
		failed += r.Failed
	}
	log.Printf("sweep finished in %s: %d runs, %d failed, summary %s",
		report.Elapsed.Round(time.Second), total, failed, report.SummaryPath)

	if *noPlots {
		return
	}
	if err := writePlots(*outDir, g, b, report); err != nil {
		log.Fatalf("Failed to write plots: %v", err)
	}
}

// applyFlags overrides config values with any flags that were set.
func applyFlags(cfg *config.ExperimentConfig) {
	if *gridSize > 0 {
		cfg.GridSize = gridSize
	}
	if *workers > 0 {
		cfg.Workers = workers
	}
	if *command != "" {
		cfg.Command = command
	}
	if *projectRoot != "" {
		cfg.ProjectRoot = projectRoot
	}
	if *instanceRoot != "" {
		cfg.InstanceRoot = instanceRoot
	}
	if *timeout > 0 {
		s := timeout.String()
		cfg.RunTimeout = &s
	}
}

// writePlots renders the mean and spread of survivors across seeds.
func writePlots(dir string, g *grid.Grid, b grid.Bounds, report *sweep.Report) error {
	stats := sweep.PointStats(report.Results, g.Len())
	sds := make([]float64, len(stats))
	for i, s := range stats {
		sds[i] = s.Stddev
	}

	mean, err := heatmap.NewSurface("Mean Surviving Humans", g, b, sweep.Means(stats))
	if err != nil {
		return err
	}
	spread, err := heatmap.NewSurface("Standard Deviation Across Seeds", g, b, sds)
	if err != nil {
		return err
	}

	if err := heatmap.SavePNG(filepath.Join(dir, "summary_mean.png"), mean, heatmap.PNGOptions{}); err != nil {
		return err
	}
	if err := heatmap.SavePNG(filepath.Join(dir, "summary_sd.png"), spread, heatmap.PNGOptions{}); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, "summary.html"))
	if err != nil {
		return err
	}
	subtitle := fmt.Sprintf("%d seeds", len(report.Results))
	if err := heatmap.RenderHTML(f, subtitle, mean, spread); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
