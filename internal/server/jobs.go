package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matsen/litsynth/internal/analysis"
	"github.com/matsen/litsynth/internal/config"
	"github.com/matsen/litsynth/internal/logging"
	"github.com/matsen/litsynth/internal/pipeline"
	"github.com/matsen/litsynth/internal/writing"
)

// minDocumentLen is the length below which a synthesis document is not
// reported as done.
const minDocumentLen = 100

// synthesisState tracks the current synthesis or revision job. Only the
// job whose generation ID is current may update it.
type synthesisState struct {
	mu           sync.Mutex
	running      bool
	done         bool
	err          string
	lastRun      *time.Time
	generationID string
	startedAt    time.Time
}

// begin claims the state for a new job. It returns false when a job is
// already running.
func (st *synthesisState) begin(now time.Time) (string, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.running {
		return "", false
	}
	st.generationID = uuid.NewString()
	st.running = true
	st.done = false
	st.err = ""
	st.startedAt = now
	return st.generationID, true
}

// finish records the outcome of job id. Stale jobs are ignored.
func (st *synthesisState) finish(id string, now time.Time, err error) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.generationID != id {
		return false
	}
	st.running = false
	if err != nil {
		st.err = err.Error()
		return true
	}
	st.done = true
	st.lastRun = &now
	return true
}

func (st *synthesisState) isRunning() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.running
}

type synthesisSnapshot struct {
	running      bool
	done         bool
	err          string
	lastRun      *time.Time
	generationID string
	startedAt    time.Time
}

func (st *synthesisState) snapshot() synthesisSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return synthesisSnapshot{
		running:      st.running,
		done:         st.done,
		err:          st.err,
		lastRun:      st.lastRun,
		generationID: st.generationID,
		startedAt:    st.startedAt,
	}
}

// StartedResponse acknowledges a background job.
type StartedResponse struct {
	OK           bool   `json:"ok"`
	Message      string `json:"message"`
	GenerationID string `json:"generation_id,omitempty"`
}

func (s *Server) handlePipelineRun(w http.ResponseWriter, r *http.Request) {
	runner := s.deps.Runner
	if runner == nil {
		s.sendError(w, http.StatusServiceUnavailable, "pipeline is not configured")
		return
	}
	if runner.Tracker().Running() {
		s.sendError(w, http.StatusConflict, "Pipeline already running")
		return
	}
	if _, err := os.Stat(config.PapersPath(s.root)); err != nil {
		s.sendError(w, http.StatusBadRequest, "No papers found. Run a search first.")
		return
	}

	ctx := logging.WithRunID(s.jobCtx, logging.NewRunID())
	done, err := runner.Start(ctx)
	if errors.Is(err, pipeline.ErrAlreadyRunning) {
		s.sendError(w, http.StatusConflict, "Pipeline already running")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		<-done
	}()
	writeJSON(w, http.StatusOK, StartedResponse{OK: true, Message: "Pipeline started"})
}

func (s *Server) handlePipelineStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runner == nil {
		writeJSON(w, http.StatusOK, pipeline.NewTracker().Snapshot())
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Runner.Tracker().Snapshot())
}

func (s *Server) handleSynthesisRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Writer == nil {
		s.sendError(w, http.StatusServiceUnavailable, "writer is not configured")
		return
	}
	if s.synth.isRunning() {
		s.sendError(w, http.StatusConflict, "Synthesis already running")
		return
	}
	if _, err := os.Stat(config.AnalysisPath(s.root)); err != nil {
		s.sendError(w, http.StatusBadRequest, "Run the extraction pipeline first.")
		return
	}

	id, ok := s.synth.begin(s.now())
	if !ok {
		s.sendError(w, http.StatusConflict, "Synthesis already running")
		return
	}
	s.startJob("synthesis", func(ctx context.Context) {
		err := s.writeSynthesis(ctx)
		if err != nil {
			logging.FromContext(ctx, s.logger).Error("synthesis failed", "error", err)
		}
		s.synth.finish(id, s.now(), err)
	})
	writeJSON(w, http.StatusOK, StartedResponse{OK: true, Message: "Synthesis started", GenerationID: id})
}

func (s *Server) writeSynthesis(ctx context.Context) error {
	res, err := analysis.LoadResults(s.root)
	if err != nil {
		return err
	}
	_, err = s.deps.Writer.Write(ctx, res)
	return err
}

// ReviseRequest is the body of POST /api/synthesis/revise.
type ReviseRequest struct {
	Instruction string `json:"instruction"`
}

func (s *Server) handleSynthesisRevise(w http.ResponseWriter, r *http.Request) {
	if s.deps.Writer == nil {
		s.sendError(w, http.StatusServiceUnavailable, "writer is not configured")
		return
	}
	var req ReviseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid JSON request")
		return
	}
	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" {
		s.sendError(w, http.StatusBadRequest, "Instruction required")
		return
	}

	id, ok := s.synth.begin(s.now())
	if !ok {
		s.sendError(w, http.StatusConflict, "Synthesis/Revision already in progress")
		return
	}
	s.startJob("revision", func(ctx context.Context) {
		_, err := s.deps.Writer.Revise(ctx, instruction)
		if err != nil {
			logging.FromContext(ctx, s.logger).Error("revision failed", "error", err)
		}
		s.synth.finish(id, s.now(), err)
	})
	writeJSON(w, http.StatusOK, StartedResponse{OK: true, Message: "Revision started", GenerationID: id})
}

// SynthesisResponse is the body of GET /api/synthesis.
type SynthesisResponse struct {
	Markdown       string            `json:"markdown"`
	Sections       *writing.Sections `json:"sections"`
	Parsed         writing.Parsed    `json:"parsed"`
	Running        bool              `json:"running"`
	Done           bool              `json:"done"`
	Error          string            `json:"error,omitempty"`
	LastRun        *time.Time        `json:"last_run"`
	GenerationID   string            `json:"generation_id,omitempty"`
	ElapsedSeconds int               `json:"elapsed_seconds"`
}

func (s *Server) handleSynthesis(w http.ResponseWriter, r *http.Request) {
	md, sections := s.loadSynthesis()
	st := s.synth.snapshot()

	resp := SynthesisResponse{
		Markdown:     md,
		Sections:     sections,
		Parsed:       writing.ParseDocument(md),
		Running:      st.running,
		Done:         st.done && len(md) > minDocumentLen,
		Error:        st.err,
		LastRun:      st.lastRun,
		GenerationID: st.generationID,
	}
	if st.running && !st.startedAt.IsZero() {
		resp.ElapsedSeconds = int(s.now().Sub(st.startedAt).Seconds())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache == nil {
		s.sendError(w, http.StatusServiceUnavailable, "cache is not available")
		return
	}
	stats, err := s.deps.Cache.Stats()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache == nil {
		s.sendError(w, http.StatusServiceUnavailable, "cache is not available")
		return
	}
	if err := s.deps.Cache.InvalidateAll(); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Cache cleared"})
}
