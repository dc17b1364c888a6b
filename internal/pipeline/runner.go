// Package pipeline runs search, analysis, writing and archiving as one
// job and reports per-stage progress while it runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/matsen/litsynth/internal/analysis"
	"github.com/matsen/litsynth/internal/archive"
	"github.com/matsen/litsynth/internal/config"
	"github.com/matsen/litsynth/internal/logging"
	"github.com/matsen/litsynth/internal/pdf"
	"github.com/matsen/litsynth/internal/reference"
	"github.com/matsen/litsynth/internal/search"
	"github.com/matsen/litsynth/internal/storage"
	"github.com/matsen/litsynth/internal/writing"
)

var (
	// ErrNoResults is returned when a search finds nothing for any topic.
	ErrNoResults = errors.New("no papers found for any topic")
	// ErrNoSearcher is returned when topics are given without a searcher.
	ErrNoSearcher = errors.New("no search client configured")
)

// Runner executes pipeline runs for one workspace.
type Runner struct {
	root       string
	analyzer   *analysis.Analyzer
	writer     *writing.Writer
	tracker    *Tracker
	searcher   *search.Searcher
	downloader *pdf.Downloader
	archive    *archive.Store
	index      *storage.DB
	logger     *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithTracker shares a tracker, e.g. with the HTTP server.
func WithTracker(t *Tracker) Option {
	return func(r *Runner) { r.tracker = t }
}

// WithSearcher enables the search step.
func WithSearcher(s *search.Searcher) Option {
	return func(r *Runner) { r.searcher = s }
}

// WithDownloader enables PDF downloads.
func WithDownloader(d *pdf.Downloader) Option {
	return func(r *Runner) { r.downloader = d }
}

// WithArchive enables archiving finished runs.
func WithArchive(a *archive.Store) Option {
	return func(r *Runner) { r.archive = a }
}

// WithIndex rebuilds the full-text paper index during the embedding
// stage.
func WithIndex(db *storage.DB) Option {
	return func(r *Runner) { r.index = db }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New returns a Runner for the workspace at root.
func New(root string, analyzer *analysis.Analyzer, writer *writing.Writer, opts ...Option) *Runner {
	r := &Runner{
		root:     root,
		analyzer: analyzer,
		writer:   writer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tracker == nil {
		r.tracker = NewTracker()
	}
	return r
}

// Tracker returns the progress tracker.
func (r *Runner) Tracker() *Tracker {
	return r.tracker
}

// Analyze runs the analysis stages over papers.jsonl and waits for
// them.
func (r *Runner) Analyze(ctx context.Context) (*analysis.Results, error) {
	if err := r.tracker.Start(); err != nil {
		return nil, err
	}
	res, err := r.analyze(ctx)
	r.tracker.Finish(err)
	return res, err
}

// Start runs the analysis stages in the background. It fails at once
// with ErrAlreadyRunning if a run is in progress; otherwise the returned
// channel is closed when the run ends.
func (r *Runner) Start(ctx context.Context) (<-chan struct{}, error) {
	if err := r.tracker.Start(); err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := r.analyze(ctx)
		r.tracker.Finish(err)
	}()
	return done, nil
}

func (r *Runner) analyze(ctx context.Context) (*analysis.Results, error) {
	log := logging.FromContext(ctx, r.logger)
	t := r.tracker

	refs, err := storage.ReadAll(config.PapersPath(r.root))
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, analysis.ErrNoPapers
	}
	n := len(refs)

	t.Set(StagePDFParse, StatusRunning, fmt.Sprintf("Processing %d documents…", n), 30)
	withPDF := countLocalPDFs(refs)
	t.Set(StagePDFParse, StatusDone, fmt.Sprintf("%d documents processed, %d with full text", n, withPDF), 100)

	t.Set(StageSectionExtract, StatusRunning, "Extracting sections…", 20)
	t.Set(StageKeyFindings, StatusRunning, "Identifying findings…", 40)
	t.Set(StageCrossCompare, StatusRunning, "Computing similarity matrix…", 60)
	res, err := r.analyzer.Run(ctx, refs)
	if err != nil {
		return nil, err
	}
	t.Set(StageSectionExtract, StatusDone, labelList(), 100)

	findings := 0
	for _, p := range res.Papers {
		findings += len(p.KeyFindings)
	}
	t.Set(StageKeyFindings, StatusDone, fmt.Sprintf("%d findings extracted", findings), 100)

	compared := "Similarity matrix computed"
	if res.Similarity == nil {
		compared = "Need at least two papers for similarity"
	}
	t.Set(StageCrossCompare, StatusDone, compared, 100)

	t.Set(StageEmbedding, StatusRunning, "Updating paper index…", 50)
	if r.index != nil {
		indexed, err := r.index.RebuildIndex(refs)
		if err != nil {
			return nil, fmt.Errorf("rebuilding paper index: %w", err)
		}
		t.Set(StageEmbedding, StatusDone, fmt.Sprintf("%d papers indexed", indexed), 100)
	} else {
		t.Set(StageEmbedding, StatusDone, "Paper index disabled", 100)
	}

	t.Set(StageSynthesisQueue, StatusDone, "Ready for AI generation", 100)
	log.Info("analysis pipeline finished", "papers", n, "findings", findings)
	return res, nil
}

func countLocalPDFs(refs []reference.Reference) int {
	n := 0
	for _, ref := range refs {
		if ref.LocalPDF == "" {
			continue
		}
		if _, err := os.Stat(ref.LocalPDF); err == nil {
			n++
		}
	}
	return n
}

func labelList() string {
	labels := make([]string, len(analysis.Labels))
	for i, l := range analysis.Labels {
		labels[i] = strings.ToUpper(l[:1]) + l[1:]
	}
	return strings.Join(labels, ", ")
}

// RunOptions selects the optional steps of a full run.
type RunOptions struct {
	Topics []string // Searched first when non-empty; otherwise papers.jsonl is used
	Limit  int      // Papers per topic
	PDFs   bool     // Download open-access PDFs before analysis
}

// Summary describes a finished full run.
type Summary struct {
	Topics       []string        `json:"topics"`
	Papers       int             `json:"papers"`
	Downloaded   int             `json:"pdfs_downloaded"`
	GenerationID string          `json:"generation_id"`
	Provider     string          `json:"provider"`
	Fallbacks    []string        `json:"fallbacks,omitempty"`
	Archive      *archive.Result `json:"archive,omitempty"`
	Elapsed      time.Duration   `json:"elapsed_ns"`
}

// Run searches (optional), downloads PDFs (optional), analyzes, writes
// the synthesis and archives the outputs.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	start := time.Now()
	log := logging.FromContext(ctx, r.logger)
	sum := &Summary{Topics: opts.Topics}

	if len(opts.Topics) > 0 {
		downloaded, err := r.collect(ctx, opts)
		if err != nil {
			return nil, err
		}
		sum.Downloaded = downloaded
	} else {
		log.Info("using existing papers")
	}

	res, err := r.Analyze(ctx)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	sum.Papers = len(res.Papers)

	syn, err := r.writer.Write(ctx, res)
	if err != nil {
		return nil, fmt.Errorf("writing: %w", err)
	}
	sum.GenerationID = syn.GenerationID
	sum.Provider = syn.Provider
	sum.Fallbacks = syn.Fallbacks

	if r.archive != nil {
		a, err := r.archive.Archive(archive.TopicLabel(opts.Topics))
		if err != nil {
			return nil, fmt.Errorf("archiving: %w", err)
		}
		sum.Archive = a
	}
	sum.Elapsed = time.Since(start)
	log.Info("pipeline completed", "papers", sum.Papers, "elapsed", sum.Elapsed.Round(time.Millisecond))
	return sum, nil
}

// collect searches the topics, optionally downloads PDFs and saves the
// dataset and corpus. It returns the number of local PDFs.
func (r *Runner) collect(ctx context.Context, opts RunOptions) (int, error) {
	if r.searcher == nil {
		return 0, ErrNoSearcher
	}
	ds, err := r.searcher.SearchTopics(ctx, opts.Topics, opts.Limit)
	if err != nil {
		return 0, fmt.Errorf("search: %w", err)
	}
	if ds.Total() == 0 {
		return 0, ErrNoResults
	}

	downloaded := 0
	if opts.PDFs && r.downloader != nil {
		for _, e := range ds.Entries() {
			n, err := r.downloader.DownloadAll(ctx, e.Topic, e.Papers)
			if err != nil {
				return 0, fmt.Errorf("downloading pdfs: %w", err)
			}
			downloaded += n
		}
	}

	if err := search.SaveDataset(r.root, ds); err != nil {
		return 0, err
	}
	r.logger.Info("papers saved", "papers", ds.Total(), "topics", len(ds.Topics()), "pdfs", downloaded)
	return downloaded, nil
}
