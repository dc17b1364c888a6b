package archive

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matsen/litsynth/internal/config"
	"github.com/matsen/litsynth/internal/logging"
	"github.com/matsen/litsynth/internal/reference"
	"github.com/matsen/litsynth/internal/storage"
	"github.com/matsen/litsynth/internal/writing"
)

var runTime = time.Date(2026, time.January, 2, 15, 4, 5, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	return New(root, WithClock(func() time.Time { return runTime }), WithLogger(logging.Discard())), root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// seedWorkspace writes the outputs of a finished run.
func seedWorkspace(t *testing.T, root string) {
	t.Helper()
	doc := writing.Assemble(writing.Header{
		Topic:    "Graph Networks",
		Date:     runTime,
		Papers:   1,
		Provider: "Cohere",
	}, writing.Sections{
		Abstract:   strings.Repeat("word ", 120),
		References: "Doe, J. (2020). Graphs.",
	})
	writeFile(t, config.SynthesisPath(root), doc)
	writeFile(t, config.BibPath(root), "@article{doe2020,\n}\n")
	if err := storage.WriteJSON(config.DocumentSectionsPath(root), writing.Sections{Abstract: "abs"}); err != nil {
		t.Fatal(err)
	}
	writeFile(t, config.AnalysisPath(root), "{}")
	writeFile(t, filepath.Join(config.SectionsPath(root), "00_Graphs", "abstract.txt"), "Graphs are everywhere.")
	refs := []reference.Reference{{
		ID:      "p1",
		Title:   "Graphs",
		Authors: []reference.Author{{First: "Jane", Last: "Doe"}},
		Year:    2020,
	}}
	if err := storage.WriteAll(config.PapersPath(root), refs); err != nil {
		t.Fatal(err)
	}
}

func TestFolderTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"", DefaultTopic},
		{"graph neural networks", "graph_neural_networks"},
		{strings.Repeat("a", 50), strings.Repeat("a", 40)},
		{"a/b", "a_b"},
	}
	for _, tt := range tests {
		if got := FolderTopic(tt.topic); got != tt.want {
			t.Errorf("FolderTopic(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

func TestTopicLabel(t *testing.T) {
	got := TopicLabel([]string{"graph neural networks", "protein", "ignored"})
	if got != "graph neural ne_protein" {
		t.Errorf("TopicLabel() = %q", got)
	}
	if got := TopicLabel(nil); got != "" {
		t.Errorf("TopicLabel(nil) = %q, want empty", got)
	}
}

func TestArchive(t *testing.T) {
	s, root := newTestStore(t)
	seedWorkspace(t, root)

	res, err := s.Archive("graph networks")
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if res.ID != "graph_networks_20260102_150405" {
		t.Errorf("ID = %q", res.ID)
	}
	for _, name := range []string{ReportFile, SectionsFile, MetricsFile, BibFile, PapersFile} {
		if _, err := os.Stat(filepath.Join(res.Path, name)); err != nil {
			t.Errorf("%s not archived: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(res.Path, SectionsDir, "00_Graphs", "abstract.txt")); err != nil {
		t.Errorf("sections tree not archived: %v", err)
	}

	wantSkipped := []string{DatasetFile, SimilarityFile}
	if strings.Join(res.Skipped, ",") != strings.Join(wantSkipped, ",") {
		t.Errorf("Skipped = %v, want %v", res.Skipped, wantSkipped)
	}
}

func TestArchive_SameSecond(t *testing.T) {
	s, _ := newTestStore(t)

	first, err := s.Archive("")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Archive("")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Errorf("both runs archived to %q", first.ID)
	}
	if second.ID != first.ID+"_2" {
		t.Errorf("second ID = %q", second.ID)
	}
	if len(first.Copied) != 0 {
		t.Errorf("empty workspace copied %v", first.Copied)
	}
}

func TestListAndGet(t *testing.T) {
	s, root := newTestStore(t)
	seedWorkspace(t, root)

	res, err := s.Archive("graphs")
	if err != nil {
		t.Fatal(err)
	}

	reports, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("List() = %d reports, want 1", len(reports))
	}
	r := reports[0]
	if r.ID != res.ID || r.Topic != "Graph Networks" || r.Model != "Cohere" || r.Date != "January 02, 2026" {
		t.Errorf("report = %+v", r)
	}
	if r.Papers != 1 || r.Status != StatusReady || !r.HasBib {
		t.Errorf("report = %+v", r)
	}

	d, err := s.Get(res.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if d.Parsed.Model != "Cohere" || len(d.Papers) != 1 || d.Sections == nil || d.Sections.Abstract != "abs" {
		t.Errorf("detail = %+v", d)
	}
	if d.APA != "Doe, J. (2020). Graphs." {
		t.Errorf("APA = %q", d.APA)
	}
	if !strings.HasPrefix(d.Bib, "@article{doe2020") {
		t.Errorf("Bib = %q", d.Bib)
	}
}

func TestList_DraftAndEmpty(t *testing.T) {
	s, root := newTestStore(t)

	reports, err := s.List()
	if err != nil || len(reports) != 0 {
		t.Fatalf("List() on empty workspace = %v, %v", reports, err)
	}

	if err := os.MkdirAll(filepath.Join(config.OutputPath(root), "bare_run"), 0755); err != nil {
		t.Fatal(err)
	}
	reports, err = s.List()
	if err != nil {
		t.Fatal(err)
	}
	r := reports[0]
	if r.Status != StatusDraft || r.Topic != "bare_run" || r.Date != "Unknown" || r.HasBib {
		t.Errorf("report = %+v", r)
	}
}

func TestGet_InvalidID(t *testing.T) {
	s, _ := newTestStore(t)
	for _, id := range []string{"", "..", "../etc", `a\b`} {
		if _, err := s.Get(id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Get(%q) error = %v, want ErrInvalidID", id, err)
		}
	}
	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestLatest(t *testing.T) {
	s, root := newTestStore(t)
	if _, err := s.Latest(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest() error = %v, want ErrNotFound", err)
	}

	out := config.OutputPath(root)
	old := filepath.Join(out, "old")
	recent := filepath.Join(out, "recent")
	for _, dir := range []string{old, recent} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(recent, SimilarityFile), "{}")

	got, err := s.Latest()
	if err != nil || got != recent {
		t.Errorf("Latest() = %q, %v, want %q", got, err, recent)
	}
	if path, ok := s.LatestFile(SimilarityFile); !ok || path != filepath.Join(recent, SimilarityFile) {
		t.Errorf("LatestFile() = %q, %v", path, ok)
	}
	if _, ok := s.LatestFile(BibFile); ok {
		t.Error("LatestFile() found a missing file")
	}
}
