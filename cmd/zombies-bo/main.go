// Command zombies-bo runs batch Bayesian optimisation of the zombies model and
// inspects stored experiments.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/banshee-data/zombies.report/internal/db"
	"github.com/banshee-data/zombies.report/internal/version"
)

const defaultDBPath = "zombies.db"

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "run":
		handleRun(args)
	case "resume":
		handleResume(args)
	case "status":
		handleStatus(args)
	case "eval":
		handleEval(args)
	case "serve":
		handleServe(args)
	case "migrate":
		handleMigrate(args)
	case "version":
		fmt.Println(version.String("zombies-bo"))
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`zombies-bo - batch Bayesian optimisation of the zombies model

Usage: zombies-bo <command> [options]

Commands:
  run        Start a new experiment from a config file
  resume     Continue an interrupted experiment
  status     List experiments or show one experiment's rounds
  eval       Run the model at one step-size pair and average the survivors
  serve      Serve the experiment API, reports and debug console
  migrate    Manage the database schema (see 'zombies-bo migrate help')
  version    Show version information
  help       Show this help message

Examples:
  # Run with the checked-in defaults and watch progress on :8080
  zombies-bo run --config config/experiment.defaults.yaml --listen :8080

  # Pick up where an interrupted run stopped
  zombies-bo resume --id 3f0c... --db zombies.db

  # Average 5 runs at one point
  zombies-bo eval --zombie-step 0.4 --human-step 1.2 --trials 5

  # Inspect stored experiments
  zombies-bo status --db zombies.db`)
}

func handleMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBPath, "Path to the experiment database")
	fs.Usage = db.PrintMigrateHelp
	fs.Parse(args)
	db.RunMigrateCommand(fs.Args(), *dbPath)
}
