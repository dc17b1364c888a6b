// Package server exposes the workspace over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/matsen/litsynth/internal/archive"
	"github.com/matsen/litsynth/internal/cache"
	"github.com/matsen/litsynth/internal/logging"
	"github.com/matsen/litsynth/internal/pipeline"
	"github.com/matsen/litsynth/internal/search"
	"github.com/matsen/litsynth/internal/storage"
	"github.com/matsen/litsynth/internal/writing"
)

// DefaultAddr is the listen address of `lsy serve`.
const DefaultAddr = "127.0.0.1:5000"

const shutdownTimeout = 10 * time.Second

// Deps are the components the API serves. Nil components disable the
// endpoints that need them.
type Deps struct {
	Runner   *pipeline.Runner
	Writer   *writing.Writer
	Searcher *search.Searcher
	Archive  *archive.Store
	Index    *storage.DB
	Cache    *cache.Cache
}

// Server handles API requests for one workspace.
type Server struct {
	root   string
	deps   Deps
	logger *slog.Logger
	now    func() time.Time

	// Background jobs run under jobCtx so they outlive the request that
	// started them.
	jobCtx    context.Context
	cancelJob context.CancelFunc
	jobs      sync.WaitGroup

	synth synthesisState
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New returns a server for the workspace at root.
func New(root string, deps Deps, opts ...Option) *Server {
	s := &Server{
		root:   root,
		deps:   deps,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.jobCtx, s.cancelJob = context.WithCancel(context.Background())
	return s
}

// RegisterRoutes adds the API routes to mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/papers", s.handlePapers)
	mux.HandleFunc("GET /api/papers/{id}", s.handlePaper)
	mux.HandleFunc("GET /api/dataset", s.handleDataset)
	mux.HandleFunc("GET /api/similarity", s.handleSimilarity)
	mux.HandleFunc("GET /api/sections", s.handleSections)

	mux.HandleFunc("POST /api/pipeline/run", s.handlePipelineRun)
	mux.HandleFunc("GET /api/pipeline/status", s.handlePipelineStatus)

	mux.HandleFunc("POST /api/synthesis/run", s.handleSynthesisRun)
	mux.HandleFunc("GET /api/synthesis", s.handleSynthesis)
	mux.HandleFunc("POST /api/synthesis/revise", s.handleSynthesisRevise)

	mux.HandleFunc("GET /api/reports", s.handleReports)
	mux.HandleFunc("GET /api/reports/{id}", s.handleReport)

	mux.HandleFunc("GET /api/export/apa", s.handleExportAPA)
	mux.HandleFunc("GET /api/export/bib", s.handleExportBib)
	mux.HandleFunc("GET /api/export/markdown", s.handleExportMarkdown)

	mux.HandleFunc("GET /api/cache/stats", s.handleCacheStats)
	mux.HandleFunc("DELETE /api/cache", s.handleCacheClear)
}

// Handler returns the API with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.RegisterRoutes(mux)
	return s.logRequests(mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// and waits for background jobs.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close cancels background jobs and waits for them to return.
func (s *Server) Close() {
	s.cancelJob()
	s.jobs.Wait()
}

// startJob runs fn in the background with a run ID attached to its
// context.
func (s *Server) startJob(name string, fn func(ctx context.Context)) {
	ctx := logging.WithRunID(s.jobCtx, logging.NewRunID())
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		logging.FromContext(ctx, s.logger).Info("job started", "job", name)
		fn(ctx)
	}()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// internalError logs err and replies 500.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	s.sendError(w, http.StatusInternalServerError, err.Error())
}
