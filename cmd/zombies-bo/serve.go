package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/zombies.report/internal/api"
	"github.com/banshee-data/zombies.report/internal/db"
)

// openExisting opens a database without migrating it and refuses schemas
// that do not match this binary.
func openExisting(path string) *db.DB {
	database, err := db.OpenDB(path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := database.CheckMigrations(); err != nil {
		database.Close()
		log.Fatalf("Database %s: %v", path, err)
	}
	return database
}

// newHandler mounts the API and the database admin routes.
func newHandler(database *db.DB, state api.StateFunc, reportsDir string) http.Handler {
	mux := api.NewServer(database, state, reportsDir).ServeMux()
	database.AttachAdminRoutes(mux)
	return api.LoggingMiddleware(mux)
}

// startServer serves in the background until ctx is done. The returned
// function waits for shutdown to finish.
func startServer(ctx context.Context, listen string, database *db.DB, state api.StateFunc, reportsDir string) func() {
	server := &http.Server{
		Addr:    listen,
		Handler: newHandler(database, state, reportsDir),
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			server.Close()
		}
	}()

	go func() {
		log.Printf("serving on %s", listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func handleServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBPath, "Path to the experiment database")
	listen := fs.String("listen", ":8080", "Listen address")
	reports := fs.String("reports", "results", "Directory of heatmap reports to serve")
	fs.Parse(args)

	database := openExisting(*dbPath)
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown := startServer(ctx, *listen, database, nil, *reports)
	<-ctx.Done()
	shutdown()
	log.Printf("Graceful shutdown complete")
}

func handleStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBPath, "Path to the experiment database")
	id := fs.String("id", "", "Show rounds for one experiment")
	fs.Parse(args)

	database := openExisting(*dbPath)
	defer database.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if *id == "" {
		exps, err := database.Experiments()
		if err != nil {
			log.Fatalf("Failed to list experiments: %v", err)
		}
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tCOMPLETE\tFAILED\tQUEUED\tCREATED")
		for _, e := range exps {
			counts, err := database.TaskCounts(e.ID)
			if err != nil {
				log.Fatalf("Failed to count tasks: %v", err)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n", e.ID, e.Name, e.Status,
				counts[db.TaskComplete], counts[db.TaskFailed], counts[db.TaskQueued]+counts[db.TaskRunning],
				e.CreatedAt.Format(time.RFC3339))
		}
		return
	}

	rounds, err := database.Rounds(*id)
	if err != nil {
		log.Fatalf("Failed to list rounds: %v", err)
	}
	fmt.Fprintln(w, "ROUND\tSELECTED\tLOG_LIKELIHOOD\tREPAIRED\tREPORT")
	for _, r := range rounds {
		lml := "-"
		if r.LogLikelihood != nil {
			lml = fmt.Sprintf("%.3f", *r.LogLikelihood)
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%t\t%s\n", r.Round, len(r.Selected), lml, r.Repaired, r.ReportPath)
	}
}
