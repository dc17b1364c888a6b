package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matsen/litsynth/internal/cache"
	"github.com/matsen/litsynth/internal/config"
	"github.com/matsen/litsynth/internal/pdf"
	"github.com/matsen/litsynth/internal/reference"
	"github.com/matsen/litsynth/internal/similarity"
	"github.com/matsen/litsynth/internal/storage"
)

// ErrNoPapers is returned when there is nothing to analyze.
var ErrNoPapers = errors.New("no papers to analyze")

const (
	// FindingsFile holds the bullet list of key findings in a paper's
	// section directory.
	FindingsFile = "key_findings.txt"

	sectionDirTitleLen = 50
)

// PaperAnalysis is the per-paper output.
type PaperAnalysis struct {
	ID                int             `json:"id"`
	Title             string          `json:"title"`
	Year              int             `json:"year,omitempty"`
	Authors           []string        `json:"authors"`
	Venue             string          `json:"venue"`
	Citations         int             `json:"citations"`
	URL               string          `json:"url"`
	Source            string          `json:"source"`
	HasPDF            bool            `json:"has_pdf"`
	Sections          Sections        `json:"sections"`
	SectionValidation map[string]bool `json:"section_validation"`
	KeyFindings       []string        `json:"key_findings"`
	Methodology       Methodology     `json:"methodology"`
	TextLength        int             `json:"text_length"`
}

// Document converts the analysis into similarity engine input.
func (p PaperAnalysis) Document() similarity.Document {
	return similarity.Document{ID: p.ID, Title: p.Title, Sections: p.Sections.List()}
}

// Reference rebuilds the bibliographic record of the paper.
func (p PaperAnalysis) Reference() reference.Reference {
	return reference.Reference{
		Title:     p.Title,
		Authors:   reference.ParseAuthors(p.Authors),
		Year:      p.Year,
		Venue:     p.Venue,
		Citations: p.Citations,
		URL:       p.URL,
		Source:    p.Source,
	}
}

// References rebuilds the bibliographic records of papers.
func References(papers []PaperAnalysis) []reference.Reference {
	refs := make([]reference.Reference, len(papers))
	for i, p := range papers {
		refs[i] = p.Reference()
	}
	return refs
}

// ValidSections counts sections with meaningful content.
func (p PaperAnalysis) ValidSections() int {
	n := 0
	for _, ok := range p.SectionValidation {
		if ok {
			n++
		}
	}
	return n
}

// Metadata describes an analysis run.
type Metadata struct {
	GeneratedAt        time.Time `json:"generated_at"`
	TotalPapers        int       `json:"total_papers"`
	SuccessfulAnalyses int       `json:"successful_analyses"`
}

// SimilaritySummary is the part of the similarity result embedded in
// analysis_results.json.
type SimilaritySummary struct {
	Matrix      [][]float64 `json:"matrix"`
	PaperTitles []string    `json:"paper_titles"`
}

// Results is the content of analysis_results.json.
type Results struct {
	Metadata            Metadata           `json:"metadata"`
	Papers              []PaperAnalysis    `json:"papers"`
	CrossPaperAnalysis  CrossAnalysis      `json:"cross_paper_analysis"`
	KeyThemes           []string           `json:"key_themes"`
	TFIDFVocabularySize int                `json:"tfidf_vocabulary_size"`
	Similarity          *SimilaritySummary `json:"similarity,omitempty"`
}

// run is what the cache stores for one corpus.
type run struct {
	Results    Results            `json:"results"`
	Similarity *similarity.Result `json:"similarity,omitempty"`
}

// TextExtractor returns the text of a local PDF.
type TextExtractor func(path string) (string, error)

// Analyzer runs the per-paper and cross-paper analysis for a workspace.
type Analyzer struct {
	root    string
	engine  *similarity.Engine
	cache   *cache.Cache
	extract TextExtractor
	workers int
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithCache enables result caching keyed by the input papers.
func WithCache(c *cache.Cache) Option {
	return func(a *Analyzer) { a.cache = c }
}

// WithExtractor replaces PDF text extraction.
func WithExtractor(fn TextExtractor) Option {
	return func(a *Analyzer) { a.extract = fn }
}

// WithWorkers bounds concurrent per-paper analysis.
func WithWorkers(n int) Option {
	return func(a *Analyzer) { a.workers = n }
}

// WithClock sets the time source for generated_at.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// NewAnalyzer returns an Analyzer writing to the workspace at root.
func NewAnalyzer(root string, opts ...Option) *Analyzer {
	a := &Analyzer{
		root:    root,
		engine:  &similarity.Engine{},
		extract: func(path string) (string, error) { return pdf.ExtractText(path, 0) },
		workers: runtime.GOMAXPROCS(0),
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run analyzes refs, compares them and writes analysis_results.json,
// similarity_results.json (when there are at least two papers) and the
// per-paper section files.
func (a *Analyzer) Run(ctx context.Context, refs []reference.Reference) (*Results, error) {
	if len(refs) == 0 {
		return nil, ErrNoPapers
	}

	var hash string
	if a.cache != nil {
		h, err := cache.Hash(refs)
		if err != nil {
			return nil, err
		}
		hash = h
		var cached run
		ok, err := a.cache.GetAnalysis(hash, &cached)
		if err != nil {
			a.logger.Warn("reading analysis cache", "error", err)
		}
		if ok {
			a.logger.Info("using cached analysis", "papers", len(refs), "hash", hash)
			if err := a.save(&cached); err != nil {
				return nil, err
			}
			return &cached.Results, nil
		}
	}

	r, err := a.analyze(ctx, refs)
	if err != nil {
		return nil, err
	}

	if err := a.save(r); err != nil {
		return nil, err
	}
	if a.cache != nil {
		if err := a.cache.PutAnalysis(hash, len(refs), r); err != nil {
			a.logger.Warn("writing analysis cache", "error", err)
		}
	}
	return &r.Results, nil
}

func (a *Analyzer) analyze(ctx context.Context, refs []reference.Reference) (*run, error) {
	papers := make([]PaperAnalysis, len(refs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.workers, 1))
	for i := range refs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			papers[i] = a.AnalyzePaper(refs[i], i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, p := range papers {
		a.logger.Info("paper analyzed",
			"paper", truncate(p.Title, 50),
			"sections", fmt.Sprintf("%d/%d", p.ValidSections(), len(Labels)),
			"findings", len(p.KeyFindings))
	}

	cross, themes := Compare(papers)
	r := &run{Results: Results{
		Metadata: Metadata{
			GeneratedAt:        a.now(),
			TotalPapers:        len(refs),
			SuccessfulAnalyses: len(papers),
		},
		Papers:             papers,
		CrossPaperAnalysis: cross,
		KeyThemes:          themes,
	}}

	docs := make([]similarity.Document, len(papers))
	for i, p := range papers {
		docs[i] = p.Document()
	}
	sim := a.engine.Compare(docs)
	if sim.Sufficient {
		r.Results.TFIDFVocabularySize = sim.VocabularySize
		r.Results.Similarity = &SimilaritySummary{Matrix: sim.Matrix, PaperTitles: sim.PaperTitles}
		r.Similarity = &sim
		a.logger.Info("similarity computed", "vocabulary", sim.VocabularySize, "pairs", len(sim.Pairs))
	} else {
		a.logger.Warn("need at least two papers for similarity", "papers", len(papers))
	}
	return r, nil
}

// AnalyzePaper extracts the features of one paper. The text comes from
// its local PDF when one exists and yields text, otherwise from the
// abstract. Key findings always come from the abstract.
func (a *Analyzer) AnalyzePaper(ref reference.Reference, index int) PaperAnalysis {
	hasPDF := false
	text := ""
	if ref.LocalPDF != "" {
		if _, err := os.Stat(ref.LocalPDF); err == nil {
			hasPDF = true
			t, err := a.extract(ref.LocalPDF)
			if err != nil {
				a.logger.Warn("pdf extraction failed", "path", ref.LocalPDF, "error", err)
			} else {
				text = t
			}
		}
	}
	if strings.TrimSpace(text) == "" {
		text = ref.Abstract
	}

	title := ref.Title
	if title == "" {
		title = "Unknown"
	}
	source := ref.Source
	if source == "" {
		source = "unknown"
	}

	sections := ExtractSections(text)
	return PaperAnalysis{
		ID:                index,
		Title:             title,
		Year:              ref.Year,
		Authors:           ref.AuthorNames(),
		Venue:             ref.Venue,
		Citations:         ref.Citations,
		URL:               ref.URL,
		Source:            source,
		HasPDF:            hasPDF,
		Sections:          sections,
		SectionValidation: sections.Validate(),
		KeyFindings:       KeyFindings(ref.Abstract),
		Methodology:       ExtractMethodology(text),
		TextLength:        len([]rune(text)),
	}
}

func (a *Analyzer) save(r *run) error {
	if err := storage.WriteJSON(config.AnalysisPath(a.root), r.Results); err != nil {
		return fmt.Errorf("saving analysis: %w", err)
	}
	// Outputs of an earlier, larger corpus must not outlive this run.
	if r.Similarity != nil {
		if err := storage.WriteJSON(config.SimilarityPath(a.root), r.Similarity); err != nil {
			return fmt.Errorf("saving similarity: %w", err)
		}
	} else if err := os.Remove(config.SimilarityPath(a.root)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing stale similarity: %w", err)
	}
	if err := os.RemoveAll(config.SectionsPath(a.root)); err != nil {
		return fmt.Errorf("clearing section files: %w", err)
	}
	if err := WriteSectionFiles(config.SectionsPath(a.root), r.Results.Papers); err != nil {
		return fmt.Errorf("saving section files: %w", err)
	}
	return nil
}

// SectionDir returns the directory name for a paper's section files,
// e.g. "03_Attention_Is_All_You_Need".
func SectionDir(p PaperAnalysis) string {
	return fmt.Sprintf("%02d_%s", p.ID, pdf.FileStem(p.Title, sectionDirTitleLen))
}

// WriteSectionFiles writes one text file per non-empty section and a
// key_findings.txt per paper under dir.
func WriteSectionFiles(dir string, papers []PaperAnalysis) error {
	for _, p := range papers {
		paperDir := filepath.Join(dir, SectionDir(p))
		if err := os.MkdirAll(paperDir, 0755); err != nil {
			return err
		}
		for _, s := range p.Sections.List() {
			if s.Text == "" {
				continue
			}
			if err := os.WriteFile(filepath.Join(paperDir, s.Name+".txt"), []byte(s.Text), 0644); err != nil {
				return err
			}
		}
		if len(p.KeyFindings) > 0 {
			bullets := make([]string, len(p.KeyFindings))
			for i, f := range p.KeyFindings {
				bullets[i] = "• " + f
			}
			if err := os.WriteFile(filepath.Join(paperDir, FindingsFile), []byte(strings.Join(bullets, "\n\n")), 0644); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadResults reads analysis_results.json from the workspace.
func LoadResults(root string) (*Results, error) {
	var r Results
	if err := storage.ReadJSON(config.AnalysisPath(root), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadSimilarity reads similarity_results.json from the workspace.
func LoadSimilarity(root string) (*similarity.Result, error) {
	var r similarity.Result
	if err := storage.ReadJSON(config.SimilarityPath(root), &r); err != nil {
		return nil, err
	}
	r.Sufficient = len(r.Matrix) >= similarity.MinDocuments
	return &r, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
