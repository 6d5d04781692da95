// Package api serves experiment progress, tasks and round history as JSON.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/zombies.report/internal/bo"
	"github.com/banshee-data/zombies.report/internal/db"
	"github.com/banshee-data/zombies.report/internal/monitoring"
)

// ANSI escape codes for request logging
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// StateFunc reports the progress of the loop currently running in this
// process.
type StateFunc func() bo.State

type Server struct {
	db    *db.DB
	state StateFunc
	// reports is the directory holding heatmap reports, or empty.
	reports string
}

// NewServer returns an API server backed by database. state may be nil when
// no loop runs in this process.
func NewServer(database *db.DB, state StateFunc, reportsDir string) *Server {
	return &Server{db: database, state: state, reports: reportsDir}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.showState)
	mux.HandleFunc("GET /api/health", s.showHealth)
	mux.HandleFunc("GET /api/experiments", s.listExperiments)
	mux.HandleFunc("GET /api/experiments/{id}", s.showExperiment)
	mux.HandleFunc("GET /api/experiments/{id}/tasks", s.listTasks)
	mux.HandleFunc("GET /api/experiments/{id}/rounds", s.listRounds)
	if s.reports != "" {
		mux.Handle("GET /reports/", http.StripPrefix("/reports/", http.FileServer(http.Dir(s.reports))))
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode json response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps a store error to 404 or 500.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSONError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) showState(w http.ResponseWriter, r *http.Request) {
	if s.state == nil {
		writeJSONError(w, http.StatusNotFound, "no optimisation loop is running")
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) showHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, monitoring.Covariance.Snapshot())
}

func (s *Server) listExperiments(w http.ResponseWriter, r *http.Request) {
	exps, err := s.db.Experiments()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exps)
}

type experimentDetail struct {
	*db.Experiment
	Tasks map[db.TaskStatus]int `json:"tasks"`
}

func (s *Server) showExperiment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	exp, err := s.db.GetExperiment(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	counts, err := s.db.TaskCounts(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, experimentDetail{Experiment: exp, Tasks: counts})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.db.GetExperiment(id); err != nil {
		writeStoreError(w, err)
		return
	}
	tasks, err := s.db.Tasks(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if st := r.URL.Query().Get("status"); st != "" {
		filtered := tasks[:0]
		for _, t := range tasks {
			if string(t.Status) == st {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	if rs := r.URL.Query().Get("round"); rs != "" {
		round, err := strconv.Atoi(rs)
		if err != nil || round < 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid 'round' parameter")
			return
		}
		filtered := tasks[:0]
		for _, t := range tasks {
			if t.Round == round {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) listRounds(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.db.GetExperiment(id); err != nil {
		writeStoreError(w, err)
		return
	}
	rounds, err := s.db.Rounds(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}
