// Package writing turns analysis results into a synthesis document with
// APA references and a BibTeX file, and revises or reviews existing
// documents.
package writing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matsen/litsynth/internal/analysis"
	"github.com/matsen/litsynth/internal/cache"
	"github.com/matsen/litsynth/internal/config"
	"github.com/matsen/litsynth/internal/export"
	"github.com/matsen/litsynth/internal/generate"
	"github.com/matsen/litsynth/internal/logging"
	"github.com/matsen/litsynth/internal/storage"
)

var (
	// ErrNoDocument is returned by Revise when nothing has been written yet.
	ErrNoDocument = errors.New("no synthesis found to revise")
	// ErrNoProvider is returned by Revise without a configured generator.
	ErrNoProvider = errors.New("no AI provider available for revision")
	// ErrEmptyInstruction is returned by Revise for a blank instruction.
	ErrEmptyInstruction = errors.New("revision instruction is required")
	// ErrRevisionFailed wraps the generator error of a failed revision.
	ErrRevisionFailed = errors.New("revision failed")
)

const (
	// Concurrency bounds the sections generated at once.
	Concurrency = 4
	// ReviseMaxTokens is the token budget for a full-document revision.
	ReviseMaxTokens = 2500
)

// Synthesis is the outcome of Write or Revise.
type Synthesis struct {
	GenerationID string   `json:"generation_id"`
	Markdown     string   `json:"markdown"`
	Sections     Sections `json:"sections"`
	Provider     string   `json:"provider"`
	Fallbacks    []string `json:"fallbacks,omitempty"` // Sections written from templates
	Cached       bool     `json:"cached"`
}

// cachedSynthesis is the whole-document cache entry. The provider is the
// one that produced the sections, not the one configured on a later hit.
type cachedSynthesis struct {
	Provider string   `json:"provider"`
	Sections Sections `json:"sections"`
}

// Writer generates and revises the synthesis document of a workspace.
type Writer struct {
	root   string
	chain  *generate.Chain
	cache  *cache.Cache
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithCache enables per-section and whole-document caching.
func WithCache(c *cache.Cache) Option {
	return func(w *Writer) { w.cache = c }
}

// WithClock sets the time source for the Generated header.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// NewWriter returns a Writer for the workspace at root. A nil or empty
// chain makes every section fall back to its template.
func NewWriter(root string, chain *generate.Chain, opts ...Option) *Writer {
	w := &Writer{
		root:   root,
		chain:  chain,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write generates every section of the synthesis for res, assembles the
// markdown document and saves research_synthesis.md,
// document_sections.json and references.bib.
func (w *Writer) Write(ctx context.Context, res *analysis.Results) (*Synthesis, error) {
	if res == nil || len(res.Papers) == 0 {
		return nil, analysis.ErrNoPapers
	}
	out := &Synthesis{GenerationID: uuid.NewString()}
	log := logging.FromContext(ctx, w.logger).With("generation_id", out.GenerationID)

	var hash string
	if w.cache != nil {
		h, err := cache.Hash(res.Papers)
		if err != nil {
			return nil, err
		}
		hash = h
		var entry cachedSynthesis
		ok, err := w.cache.GetSynthesis(hash, &entry)
		if err != nil {
			log.Warn("reading synthesis cache", "error", err)
		}
		// Entries written before the provider was recorded are misses.
		if ok && err == nil && entry.Provider != "" {
			out.Sections = entry.Sections
			out.Provider = entry.Provider
			out.Cached = true
		}
	}

	if !out.Cached {
		var err error
		out.Sections, out.Fallbacks, err = w.generate(ctx, res, hash, log)
		if err != nil {
			return nil, err
		}
		out.Provider = TemplateProvider
		if w.chain.Ready() && len(out.Fallbacks) < len(proseSections) {
			out.Provider = w.chain.Primary()
		}
		if w.cache != nil && len(out.Fallbacks) == 0 {
			entry := cachedSynthesis{Provider: out.Provider, Sections: out.Sections}
			if err := w.cache.PutSynthesis(hash, len(res.Papers), entry); err != nil {
				log.Warn("writing synthesis cache", "error", err)
			}
		}
	}

	header := Header{
		Topic:    TopicTitle(res.KeyThemes),
		Date:     w.now(),
		Papers:   len(res.Papers),
		Provider: out.Provider,
	}
	out.Markdown = Assemble(header, out.Sections)
	out.Sections.SynthesisReport = out.Markdown

	if err := w.save(out.Markdown, out.Sections); err != nil {
		return nil, err
	}
	log.Info("synthesis written",
		"papers", len(res.Papers),
		"provider", out.Provider,
		"fallbacks", len(out.Fallbacks),
		"cached", out.Cached)
	return out, nil
}

// generate produces all sections concurrently. It returns the names of
// sections that fell back to templates, in document order.
func (w *Writer) generate(ctx context.Context, res *analysis.Results, hash string, log *slog.Logger) (Sections, []string, error) {
	texts := make([]string, len(proseSections))
	fell := make([]bool, len(proseSections))
	refs := analysis.References(res.Papers)
	var apa, bib string

	var g errgroup.Group
	g.SetLimit(Concurrency)
	for i, p := range proseSections {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			texts[i], fell[i] = w.section(ctx, res, hash, p, log)
			return nil
		})
	}
	g.Go(func() error {
		apa = export.ToAPAList(refs)
		return nil
	})
	g.Go(func() error {
		bib = export.ToBibTeXList(refs)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Sections{}, nil, err
	}

	var s Sections
	var fallbacks []string
	for i, p := range proseSections {
		s.set(p.name, texts[i])
		if fell[i] {
			fallbacks = append(fallbacks, p.name)
		}
	}
	s.set(SectionReferences, apa)
	s.set(SectionBibTeX, bib)
	return s, fallbacks, nil
}

// section returns the text for one prose section and whether it came
// from the template fallback.
func (w *Writer) section(ctx context.Context, res *analysis.Results, hash string, p prose, log *slog.Logger) (string, bool) {
	if w.cache != nil {
		text, ok, err := w.cache.GetSection(hash, p.name)
		if err != nil {
			log.Warn("reading section cache", "section", p.name, "error", err)
		} else if ok {
			log.Debug("section cache hit", "section", p.name)
			return text, false
		}
	}

	if w.chain.Ready() {
		log.Info("generating section", "section", p.name)
		r := w.chain.Generate(ctx, generate.Request{
			System:    SystemPrompt,
			Prompt:    p.prompt(res),
			MaxTokens: p.maxTokens,
		})
		if r.OK() && strings.TrimSpace(r.Text) != "" {
			if w.cache != nil {
				if err := w.cache.PutSection(hash, len(res.Papers), p.name, r.Text); err != nil {
					log.Warn("writing section cache", "section", p.name, "error", err)
				}
			}
			return r.Text, false
		}
		log.Warn("section generation failed, using fallback", "section", p.name, "error", r.Error)
	}
	return p.fallback(res), true
}

// Revise rewrites the saved document following instruction and saves
// the result. The BibTeX file is kept.
func (w *Writer) Revise(ctx context.Context, instruction string) (*Synthesis, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, ErrEmptyInstruction
	}
	current, err := LoadDocument(w.root)
	if err != nil {
		return nil, err
	}
	if !w.chain.Ready() {
		return nil, ErrNoProvider
	}

	out := &Synthesis{GenerationID: uuid.NewString()}
	log := logging.FromContext(ctx, w.logger).With("generation_id", out.GenerationID)
	log.Info("revising synthesis", "instruction", instruction)

	r := w.chain.Generate(ctx, generate.Request{
		Prompt:    revisePrompt(instruction, current),
		MaxTokens: ReviseMaxTokens,
	})
	if !r.OK() {
		return nil, fmt.Errorf("%w: %s", ErrRevisionFailed, r.Error)
	}
	revised := StripFences(r.Text)
	if revised == "" {
		return nil, fmt.Errorf("%w: empty revision", ErrRevisionFailed)
	}

	sections, err := LoadSections(w.root)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if sections != nil {
		out.Sections = *sections
	}
	out.Sections.SynthesisReport = revised
	out.Markdown = revised
	out.Provider = r.Provider

	if err := w.save(revised, out.Sections); err != nil {
		return nil, err
	}
	log.Info("revision saved", "provider", r.Provider, "words", len(strings.Fields(revised)))
	return out, nil
}

// StripFences removes markdown code fences a generator wrapped around
// its answer.
func StripFences(text string) string {
	text = strings.ReplaceAll(text, "```markdown", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

func (w *Writer) save(markdown string, s Sections) error {
	if err := storage.WriteText(config.SynthesisPath(w.root), markdown); err != nil {
		return fmt.Errorf("saving synthesis: %w", err)
	}
	if err := storage.WriteJSON(config.DocumentSectionsPath(w.root), s); err != nil {
		return fmt.Errorf("saving sections: %w", err)
	}
	if s.BibTeX != "" {
		if err := storage.WriteText(config.BibPath(w.root), s.BibTeX); err != nil {
			return fmt.Errorf("saving bibtex: %w", err)
		}
	}
	return nil
}

// LoadDocument reads research_synthesis.md. A missing file yields
// ErrNoDocument.
func LoadDocument(root string) (string, error) {
	data, err := os.ReadFile(config.SynthesisPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoDocument
		}
		return "", fmt.Errorf("reading synthesis: %w", err)
	}
	return string(data), nil
}

// LoadSections reads document_sections.json.
func LoadSections(root string) (*Sections, error) {
	var s Sections
	if err := storage.ReadJSON(config.DocumentSectionsPath(root), &s); err != nil {
		return nil, err
	}
	return &s, nil
}
