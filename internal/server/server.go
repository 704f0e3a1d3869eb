package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwbudde/hypertune/internal/runspec"
	"github.com/cwbudde/hypertune/internal/store"
)

// Server exposes tuning jobs over HTTP: create and watch searches, read the
// optimization path and final result.
type Server struct {
	jobManager *JobManager
	archive    store.Store
	traceDir   string
	addr       string
	server     *http.Server
}

// NewServer creates a server. archive may be nil to disable run archiving;
// traceDir is where completed traces are written.
func NewServer(addr string, archive store.Store, traceDir string) *Server {
	return &Server{
		jobManager: NewJobManager(),
		archive:    archive,
		traceDir:   traceDir,
		addr:       addr,
	}
}

// Start runs the HTTP server until it shuts down.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.loggingMiddleware(s.corsMiddleware(mux)),
	}

	slog.Info("starting http server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down http server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleJobs handles /api/v1/jobs.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID routes /api/v1/jobs/:id/*.
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "job ID required", http.StatusBadRequest)
		return
	}
	jobID := parts[0]

	switch {
	case len(parts) == 1 || parts[1] == "status":
		s.handleJobStatus(w, r, jobID)
	case parts[1] == "events":
		s.handleJobEvents(w, r, jobID)
	case parts[1] == "path":
		s.handleJobPath(w, r, jobID)
	case parts[1] == "result":
		s.handleJobResult(w, r, jobID)
	case parts[1] == "cancel" && r.Method == http.MethodPost:
		s.handleJobCancel(w, r, jobID)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// handleCreateJob handles POST /api/v1/jobs: decode a run spec, validate it
// up front, then launch the search in the background.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var spec runspec.Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, fmt.Sprintf("invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	// Configuration errors surface here, before any trial runs.
	if _, err := spec.Build(); err != nil {
		http.Error(w, fmt.Sprintf("invalid run spec: %v", err), http.StatusBadRequest)
		return
	}

	job := s.jobManager.CreateJob(spec)
	go func() {
		if err := runJob(context.Background(), s.jobManager, s.archive, s.traceDir, job.ID); err != nil {
			slog.Error("job execution failed", "job_id", job.ID, "error", err)
		}
	}()

	s.writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

// handleJobPath serves the optimization path as a table; ?trafo=1 reports
// transformed parameter values.
func (s *Server) handleJobPath(w http.ResponseWriter, r *http.Request, jobID string) {
	result, ok := s.jobManager.Result(jobID)
	if !ok {
		http.Error(w, "no result available for job", http.StatusNotFound)
		return
	}
	transformed := r.URL.Query().Get("trafo") == "1"
	s.writeJSON(w, http.StatusOK, result.Path.AsTable(transformed))
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request, jobID string) {
	result, ok := s.jobManager.Result(jobID)
	if !ok {
		http.Error(w, "no result available for job", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"runId":        result.RunID,
		"best":         result.Best,
		"bestTrafo":    result.BestTrafo,
		"bestY":        result.BestY,
		"bestIndex":    result.BestIndex,
		"trials":       result.Path.Len(),
		"failedTrials": result.FailedTrials,
		"diagnostics":  result.Diagnostics,
		"elapsed":      result.Elapsed.Seconds(),
	})
}

func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request, jobID string) {
	if err := s.jobManager.CancelJob(jobID); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// loggingMiddleware logs each request with its duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// corsMiddleware allows browser clients on other origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
