package pipeline

import (
	"errors"
	"sync"
	"time"
)

// ErrAlreadyRunning is returned when a run is started while another one
// is in progress.
var ErrAlreadyRunning = errors.New("pipeline already running")

// Stage IDs in execution order.
const (
	StagePDFParse       = "pdf-parse"
	StageSectionExtract = "section-extract"
	StageKeyFindings    = "key-findings"
	StageCrossCompare   = "cross-compare"
	StageEmbedding      = "embedding"
	StageSynthesisQueue = "synthesis-queue"
)

// Stage statuses.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
)

const waiting = "Waiting…"

// Stage is the observable state of one pipeline step.
type Stage struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

var stageTitles = []struct{ id, title string }{
	{StagePDFParse, "PDF Parsing"},
	{StageSectionExtract, "Section Extraction"},
	{StageKeyFindings, "Key Finding Identification"},
	{StageCrossCompare, "Cross-Paper Comparison"},
	{StageEmbedding, "Paper Index"},
	{StageSynthesisQueue, "Synthesis Queue"},
}

func initialStages() []Stage {
	stages := make([]Stage, len(stageTitles))
	for i, s := range stageTitles {
		stages[i] = Stage{ID: s.id, Title: s.title, Subtitle: waiting, Status: StatusPending}
	}
	return stages
}

// Snapshot is a copy of the tracker state.
type Snapshot struct {
	Running bool       `json:"running"`
	Stages  []Stage    `json:"stages"`
	LastRun *time.Time `json:"last_run"`
	Error   string     `json:"error,omitempty"`
}

// Tracker records the progress of one pipeline run at a time. It is
// safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	running bool
	stages  []Stage
	lastRun time.Time
	err     string
	now     func() time.Time
}

// NewTracker returns a tracker with every stage pending.
func NewTracker() *Tracker {
	return &Tracker{stages: initialStages(), now: time.Now}
}

// Start resets the stages and marks a run in progress.
func (t *Tracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrAlreadyRunning
	}
	t.running = true
	t.stages = initialStages()
	t.err = ""
	return nil
}

// Set updates one stage. Unknown IDs are ignored.
func (t *Tracker) Set(id, status, subtitle string, progress int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.stages {
		if t.stages[i].ID == id {
			t.stages[i].Status = status
			t.stages[i].Subtitle = subtitle
			t.stages[i].Progress = max(0, min(100, progress))
			return
		}
	}
}

// Finish ends the run. On failure the running stage goes back to
// pending and err is recorded; on success the run time is recorded.
func (t *Tracker) Finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	if err != nil {
		t.err = err.Error()
		for i := range t.stages {
			if t.stages[i].Status == StatusRunning {
				t.stages[i].Status = StatusPending
			}
		}
		return
	}
	t.lastRun = t.now()
}

// Running reports whether a run is in progress.
func (t *Tracker) Running() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := Snapshot{
		Running: t.running,
		Stages:  append([]Stage(nil), t.stages...),
		Error:   t.err,
	}
	if !t.lastRun.IsZero() {
		last := t.lastRun
		s.LastRun = &last
	}
	return s
}
