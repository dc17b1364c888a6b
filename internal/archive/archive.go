// Package archive copies the outputs of a run into timestamped folders
// under output/ and reads them back as reports.
package archive

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/matsen/litsynth/internal/config"
	"github.com/matsen/litsynth/internal/export"
	"github.com/matsen/litsynth/internal/reference"
	"github.com/matsen/litsynth/internal/storage"
	"github.com/matsen/litsynth/internal/writing"
)

// File names inside a run folder.
const (
	ReportFile     = "Research_Synthesis.md"
	SectionsFile   = "Sections_Data.json"
	MetricsFile    = "Analysis_Metrics.json"
	PapersFile     = "Source_Papers.json"
	BibFile        = "References.bib"
	DatasetFile    = config.DatasetFile
	SimilarityFile = config.SimilarityFile
	SectionsDir    = config.SectionsDir
)

const (
	// DefaultTopic names runs archived without a topic.
	DefaultTopic = "Research_Run"
	// TimestampLayout is appended to the topic in folder names.
	TimestampLayout = "20060102_150405"

	// StatusReady marks a report with a substantial document.
	StatusReady = "ready"
	// StatusDraft marks a report without one.
	StatusDraft = "draft"

	maxTopicLen   = 40
	topicLabelLen = 15
	readyWords    = 100
)

var (
	// ErrInvalidID is returned for report IDs that are not a single
	// folder name.
	ErrInvalidID = errors.New("invalid report id")
	// ErrNotFound is returned when a report or any run folder is missing.
	ErrNotFound = errors.New("report not found")
)

// Store manages the run folders of a workspace.
type Store struct {
	root   string
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source for folder timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns a Store for the workspace at root.
func New(root string, opts ...Option) *Store {
	s := &Store{root: root, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result describes one archived run.
type Result struct {
	ID      string   `json:"id"`
	Path    string   `json:"path"`
	Copied  []string `json:"copied"`
	Skipped []string `json:"skipped,omitempty"`
}

// TopicLabel builds an archive topic from the first two search topics.
func TopicLabel(topics []string) string {
	var parts []string
	for _, t := range topics[:min(2, len(topics))] {
		r := []rune(strings.TrimSpace(t))
		parts = append(parts, string(r[:min(topicLabelLen, len(r))]))
	}
	return strings.Join(parts, "_")
}

// FolderTopic turns a topic into the folder name prefix.
func FolderTopic(topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return DefaultTopic
	}
	r := []rune(strings.ReplaceAll(topic, " ", "_"))
	r = r[:min(maxTopicLen, len(r))]
	return strings.NewReplacer("/", "_", `\`, "_").Replace(string(r))
}

// Archive copies the current outputs into output/<topic>_<timestamp>.
// Missing inputs are skipped and listed in the result.
func (s *Store) Archive(topic string) (*Result, error) {
	dir, id, err := s.newFolder(topic)
	if err != nil {
		return nil, err
	}
	res := &Result{ID: id, Path: dir}

	files := []struct{ src, name string }{
		{config.SynthesisPath(s.root), ReportFile},
		{config.DocumentSectionsPath(s.root), SectionsFile},
		{config.AnalysisPath(s.root), MetricsFile},
		{config.BibPath(s.root), BibFile},
		{config.DatasetPath(s.root), DatasetFile},
		{config.SimilarityPath(s.root), SimilarityFile},
	}
	for _, f := range files {
		err := copyFile(f.src, filepath.Join(dir, f.name))
		switch {
		case err == nil:
			res.Copied = append(res.Copied, f.name)
		case errors.Is(err, os.ErrNotExist):
			res.Skipped = append(res.Skipped, f.name)
		default:
			return nil, fmt.Errorf("archiving %s: %w", f.name, err)
		}
	}

	papers, err := storage.ReadAll(config.PapersPath(s.root))
	if err != nil {
		return nil, fmt.Errorf("reading papers: %w", err)
	}
	if len(papers) > 0 {
		if err := storage.WriteJSON(filepath.Join(dir, PapersFile), papers); err != nil {
			return nil, fmt.Errorf("archiving %s: %w", PapersFile, err)
		}
		res.Copied = append(res.Copied, PapersFile)
	} else {
		res.Skipped = append(res.Skipped, PapersFile)
	}

	sections := config.SectionsPath(s.root)
	if info, err := os.Stat(sections); err == nil && info.IsDir() {
		if err := os.CopyFS(filepath.Join(dir, SectionsDir), os.DirFS(sections)); err != nil {
			return nil, fmt.Errorf("archiving sections: %w", err)
		}
		res.Copied = append(res.Copied, SectionsDir+"/")
	} else {
		res.Skipped = append(res.Skipped, SectionsDir+"/")
	}

	s.logger.Info("run archived", "id", id, "copied", len(res.Copied), "skipped", res.Skipped)
	return res, nil
}

// newFolder creates a fresh run folder, adding a counter when a run with
// the same topic was archived within the same second.
func (s *Store) newFolder(topic string) (string, string, error) {
	base := FolderTopic(topic) + "_" + s.now().Format(TimestampLayout)
	out := config.OutputPath(s.root)
	if err := os.MkdirAll(out, 0755); err != nil {
		return "", "", fmt.Errorf("creating output directory: %w", err)
	}
	id := base
	for n := 2; ; n++ {
		err := os.Mkdir(filepath.Join(out, id), 0755)
		if err == nil {
			return filepath.Join(out, id), id, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", "", fmt.Errorf("creating run folder: %w", err)
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Report summarizes one run folder.
type Report struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Topic    string    `json:"topic"`
	Date     string    `json:"date"`
	Model    string    `json:"model"`
	Papers   int       `json:"papers"`
	Words    int       `json:"words"`
	Status   string    `json:"status"`
	HasBib   bool      `json:"has_bib"`
	Modified time.Time `json:"modified"`
}

type folder struct {
	name    string
	modTime time.Time
}

// folders returns the run folders, newest first.
func (s *Store) folders() ([]folder, error) {
	entries, err := os.ReadDir(config.OutputPath(s.root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	var out []folder
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, folder{name: e.Name(), modTime: info.ModTime()})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].modTime.After(out[j].modTime) })
	return out, nil
}

// List summarizes every run folder, newest first.
func (s *Store) List() ([]Report, error) {
	folders, err := s.folders()
	if err != nil {
		return nil, err
	}
	reports := make([]Report, 0, len(folders))
	for _, f := range folders {
		reports = append(reports, s.summarize(f))
	}
	return reports, nil
}

func (s *Store) summarize(f folder) Report {
	dir := filepath.Join(config.OutputPath(s.root), f.name)
	md, _ := os.ReadFile(filepath.Join(dir, ReportFile))
	parsed := writing.ParseDocument(string(md))
	var papers []reference.Reference
	_ = storage.ReadJSON(filepath.Join(dir, PapersFile), &papers)

	r := Report{
		ID:       f.name,
		Title:    strings.ReplaceAll(f.name, "_", " "),
		Topic:    orDefault(parsed.Topic, f.name),
		Date:     orDefault(parsed.Date, "Unknown"),
		Model:    orDefault(parsed.Model, "Unknown"),
		Papers:   len(papers),
		Words:    len(strings.Fields(string(md))),
		Status:   StatusDraft,
		Modified: f.modTime,
	}
	if r.Words > readyWords {
		r.Status = StatusReady
	}
	if _, err := os.Stat(filepath.Join(dir, BibFile)); err == nil {
		r.HasBib = true
	}
	return r
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Detail is the full content of one run folder.
type Detail struct {
	ID       string                `json:"id"`
	Markdown string                `json:"markdown"`
	Parsed   writing.Parsed        `json:"parsed"`
	Papers   []reference.Reference `json:"papers"`
	Bib      string                `json:"bib"`
	Sections *writing.Sections     `json:"sections"`
	APA      string                `json:"apa"`
}

// Get reads one run folder.
func (s *Store) Get(id string) (*Detail, error) {
	dir, err := s.Dir(id)
	if err != nil {
		return nil, err
	}
	md, _ := os.ReadFile(filepath.Join(dir, ReportFile))
	bib, _ := os.ReadFile(filepath.Join(dir, BibFile))

	d := &Detail{
		ID:       id,
		Markdown: string(md),
		Parsed:   writing.ParseDocument(string(md)),
		Bib:      string(bib),
		Papers:   []reference.Reference{},
	}
	if err := storage.ReadJSON(filepath.Join(dir, PapersFile), &d.Papers); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	var sections writing.Sections
	if err := storage.ReadJSON(filepath.Join(dir, SectionsFile), &sections); err == nil {
		d.Sections = &sections
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	d.APA = export.ToAPAList(d.Papers)
	return d, nil
}

// Dir returns the path of the run folder id.
func (s *Store) Dir(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	dir := filepath.Join(config.OutputPath(s.root), id)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return dir, nil
}

// Latest returns the most recently modified run folder.
func (s *Store) Latest() (string, error) {
	folders, err := s.folders()
	if err != nil {
		return "", err
	}
	if len(folders) == 0 {
		return "", ErrNotFound
	}
	return filepath.Join(config.OutputPath(s.root), folders[0].name), nil
}

// LatestFile returns the path of name in the latest run folder, if that
// file exists.
func (s *Store) LatestFile(name string) (string, bool) {
	dir, err := s.Latest()
	if err != nil {
		return "", false
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}
