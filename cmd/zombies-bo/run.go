package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/banshee-data/zombies.report/internal/bo"
	"github.com/banshee-data/zombies.report/internal/config"
	"github.com/banshee-data/zombies.report/internal/db"
	"github.com/banshee-data/zombies.report/internal/sim"
)

func handleRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "Experiment config file (.json, .yaml)")
	dbPath := fs.String("db", "", "Database path (overrides the config)")
	name := fs.String("name", "", "Experiment name (overrides the config)")
	listen := fs.String("listen", "", "Serve the API on this address while running")
	keep := fs.Bool("keep-instances", false, "Keep simulator instance directories")
	fs.Parse(args)

	cfg, err := config.LoadExperimentConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbPath != "" {
		cfg.Database = dbPath
	}
	if *name != "" {
		cfg.Name = name
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	database, err := db.NewDB(cfg.GetDatabase())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	snapshot, err := json.Marshal(cfg.Resolved())
	if err != nil {
		log.Fatalf("Failed to encode config: %v", err)
	}
	exp, err := database.CreateExperiment(cfg.GetName(), snapshot)
	if err != nil {
		log.Fatalf("Failed to create experiment: %v", err)
	}
	log.Printf("created experiment %s (%s)", exp.ID, exp.Name)

	runExperiment(database, exp.ID, cfg, *listen, *keep)
}

func handleResume(args []string) {
	fs := flag.NewFlagSet("resume", flag.ExitOnError)
	id := fs.String("id", "", "Experiment id (required)")
	dbPath := fs.String("db", defaultDBPath, "Path to the experiment database")
	listen := fs.String("listen", "", "Serve the API on this address while running")
	keep := fs.Bool("keep-instances", false, "Keep simulator instance directories")
	fs.Parse(args)

	if *id == "" {
		log.Fatal("--id is required")
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	exp, err := database.GetExperiment(*id)
	if err != nil {
		log.Fatalf("Failed to load experiment: %v", err)
	}
	cfg := config.EmptyExperimentConfig()
	if err := json.Unmarshal([]byte(exp.ConfigJSON), cfg); err != nil {
		log.Fatalf("Failed to decode stored config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Stored config is invalid: %v", err)
	}
	log.Printf("resuming experiment %s (%s), last status %s", exp.ID, exp.Name, exp.Status)

	runExperiment(database, exp.ID, cfg, *listen, *keep)
}

// runExperiment drives the loop until it completes or the process is
// interrupted. Interrupted tasks are failed on the next resume.
func runExperiment(database *db.DB, id string, cfg *config.ExperimentConfig, listen string, keep bool) {
	opts, err := bo.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid experiment options: %v", err)
	}

	runner := &sim.CommandRunner{
		Command:       cfg.GetCommand(),
		ProjectRoot:   cfg.GetProjectRoot(),
		InstanceRoot:  cfg.GetInstanceRoot(),
		Timeout:       cfg.GetRunTimeout(),
		KeepInstances: keep,
	}
	loop, err := bo.New(database, runner, id, opts)
	if err != nil {
		log.Fatalf("Failed to create loop: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if listen != "" {
		shutdown := startServer(ctx, listen, database, loop.State, opts.OutputDir)
		defer shutdown()
	}

	if err := loop.Run(ctx); err != nil {
		log.Printf("experiment %s stopped: %v", id, err)
		return
	}

	st := loop.State()
	log.Printf("experiment %s complete: %d tasks, %d failed", id, st.TasksTotal, st.TasksFailed)
	if st.Best != nil {
		log.Printf("best predicted point: zombie_step=%.4f human_step=%.4f survivors=%.1f",
			st.Best.Native[0], st.Best.Native[1], st.Best.Mean)
	}
}
