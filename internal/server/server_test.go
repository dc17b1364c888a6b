package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matsen/litsynth/internal/analysis"
	"github.com/matsen/litsynth/internal/archive"
	"github.com/matsen/litsynth/internal/cache"
	"github.com/matsen/litsynth/internal/config"
	"github.com/matsen/litsynth/internal/logging"
	"github.com/matsen/litsynth/internal/pipeline"
	"github.com/matsen/litsynth/internal/reference"
	"github.com/matsen/litsynth/internal/search"
	"github.com/matsen/litsynth/internal/storage"
	"github.com/matsen/litsynth/internal/writing"
)

type fakeSource struct {
	refs map[string][]reference.Reference
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Search(_ context.Context, query string, _ int) ([]reference.Reference, error) {
	return append([]reference.Reference(nil), f.refs[query]...), nil
}

func corpus() []reference.Reference {
	return []reference.Reference{
		{
			ID: "p1", Title: "Graph Neural Networks", Year: 2020, Venue: "NeurIPS", Citations: 3,
			Authors:  []reference.Author{{First: "Jane", Last: "Doe"}},
			Abstract: "Graph networks learn structure. Our model improved accuracy by 12.5%.",
		},
		{
			ID: "p2", Title: "Message Passing on Graphs", Year: 2021, Citations: 40,
			Authors:  []reference.Author{{First: "Ada", Last: "Lovelace"}},
			Abstract: "Message passing generalizes graph networks. We found strong results.",
		},
	}
}

type testEnv struct {
	root string
	srv  *Server
	ts   *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	log := logging.Discard()

	db, err := storage.OpenDB(config.DBPath(root))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	c := cache.New(db, cache.WithLogger(log))

	src := &fakeSource{refs: map[string][]reference.Reference{"graphs": corpus()}}
	searcher := search.NewSearcher(src, nil, search.WithPause(0), search.WithLogger(log))
	an := analysis.NewAnalyzer(root, analysis.WithCache(c), analysis.WithLogger(log))
	wr := writing.NewWriter(root, nil, writing.WithCache(c), writing.WithLogger(log))
	store := archive.New(root, archive.WithLogger(log))
	runner := pipeline.New(root, an, wr, pipeline.WithIndex(db), pipeline.WithLogger(log))

	srv := New(root, Deps{
		Runner:   runner,
		Writer:   wr,
		Searcher: searcher,
		Archive:  store,
		Index:    db,
		Cache:    c,
	}, WithLogger(log))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return &testEnv{root: root, srv: srv, ts: ts}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func (e *testEnv) getJSON(t *testing.T, path string, v any) {
	t.Helper()
	resp, data := e.do(t, http.MethodGet, path, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d, body %s", path, resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("GET %s: decoding %s: %v", path, data, err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// runPipeline searches, analyzes and writes a synthesis through the API.
func (e *testEnv) runPipeline(t *testing.T) {
	t.Helper()
	if resp, body := e.do(t, http.MethodPost, "/api/search", `{"topics": "graphs"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d, body %s", resp.StatusCode, body)
	}
	if resp, body := e.do(t, http.MethodPost, "/api/pipeline/run", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("pipeline run status = %d, body %s", resp.StatusCode, body)
	}
	waitFor(t, "pipeline", func() bool { return !e.srv.deps.Runner.Tracker().Running() })
	if snap := e.srv.deps.Runner.Tracker().Snapshot(); snap.Error != "" {
		t.Fatalf("pipeline error = %s", snap.Error)
	}
}

func TestStatus(t *testing.T) {
	e := newTestEnv(t)
	var st StatusResponse
	e.getJSON(t, "/api/status", &st)
	if !st.OK || st.PapersLoaded != 0 || st.SynthesisReady || st.PipelineRunning {
		t.Errorf("status = %+v", st)
	}
}

func TestSearch(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCount  int
	}{
		{"string topics", `{"topics": "graphs, unknown"}`, http.StatusOK, 2},
		{"list topics", `{"topics": ["graphs"], "limit": 3}`, http.StatusOK, 2},
		{"topic alias", `{"topic": "graphs"}`, http.StatusOK, 2},
		{"missing topic", `{"limit": 3}`, http.StatusBadRequest, 0},
		{"blank topics", `{"topics": [" ", ""]}`, http.StatusBadRequest, 0},
		{"bad json", `{`, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := e.do(t, http.MethodPost, "/api/search", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, tt.wantStatus, body)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var sr struct {
				Count   int                        `json:"count"`
				Dataset map[string]json.RawMessage `json:"dataset"`
			}
			if err := json.Unmarshal(body, &sr); err != nil {
				t.Fatal(err)
			}
			if sr.Count != tt.wantCount {
				t.Errorf("count = %d, want %d", sr.Count, tt.wantCount)
			}
			if _, ok := sr.Dataset["graphs"]; !ok {
				t.Errorf("dataset = %v, want graphs key", sr.Dataset)
			}
		})
	}

	var papers PapersResponse
	e.getJSON(t, "/api/papers", &papers)
	if papers.Count != 2 {
		t.Errorf("papers count = %d, want 2", papers.Count)
	}
	filters := []struct {
		query  string
		wantID string
	}{
		{"author=Lovelace", "p2"},
		{"author=Doe,+Jane", "p1"},
		{"year=2021", "p2"},
		{"year=:2020&venue=neurips", "p1"},
	}
	for _, f := range filters {
		var got PapersResponse
		e.getJSON(t, "/api/papers?"+f.query, &got)
		if got.Count != 1 || got.Papers[0].ID != f.wantID {
			t.Errorf("papers?%s = %+v, want only %s", f.query, got.Papers, f.wantID)
		}
	}
	if resp, _ := e.do(t, http.MethodGet, "/api/papers?year=20x0", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad year status = %d, want 400", resp.StatusCode)
	}

	var ds DatasetResponse
	e.getJSON(t, "/api/dataset", &ds)
	if ds.Total != 2 || len(ds.Topics) != 1 || ds.Topics[0] != "graphs" {
		t.Errorf("dataset = topics %v total %d", ds.Topics, ds.Total)
	}
}

func TestPaperIndex(t *testing.T) {
	e := newTestEnv(t)
	if resp, body := e.do(t, http.MethodPost, "/api/search", `{"topic": "graphs"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d, body %s", resp.StatusCode, body)
	}

	var st StatusResponse
	e.getJSON(t, "/api/status", &st)
	if st.PapersLoaded != 2 || st.PapersIndexed != 2 {
		t.Errorf("status loaded/indexed = %d/%d, want 2/2", st.PapersLoaded, st.PapersIndexed)
	}

	var byCitations PapersResponse
	e.getJSON(t, "/api/papers?sort=citations", &byCitations)
	if byCitations.Count != 2 || byCitations.Papers[0].ID != "p2" || byCitations.Papers[1].ID != "p1" {
		t.Errorf("sort=citations = %+v, want p2 then p1", byCitations.Papers)
	}
	var top PapersResponse
	e.getJSON(t, "/api/papers?sort=citations&limit=1", &top)
	if top.Count != 1 || top.Papers[0].ID != "p2" {
		t.Errorf("sort=citations&limit=1 = %+v, want only p2", top.Papers)
	}
	if resp, _ := e.do(t, http.MethodGet, "/api/papers?sort=year", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown sort status = %d, want 400", resp.StatusCode)
	}

	var paper reference.Reference
	e.getJSON(t, "/api/papers/p1", &paper)
	if paper.Title != "Graph Neural Networks" || paper.Citations != 3 || len(paper.Authors) != 1 {
		t.Errorf("paper = %+v", paper)
	}
	if resp, _ := e.do(t, http.MethodGet, "/api/papers/missing", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing paper status = %d, want 404", resp.StatusCode)
	}
}

func TestEmptyWorkspace(t *testing.T) {
	e := newTestEnv(t)

	var papers PapersResponse
	e.getJSON(t, "/api/papers", &papers)
	if papers.Count != 0 || papers.Papers == nil {
		t.Errorf("papers = %+v, want empty list", papers)
	}

	var ds DatasetResponse
	e.getJSON(t, "/api/dataset", &ds)
	if ds.Total != 0 || len(ds.Topics) != 0 {
		t.Errorf("dataset = %+v, want empty", ds)
	}

	var sections SectionsResponse
	e.getJSON(t, "/api/sections", &sections)
	if sections.Count != 0 {
		t.Errorf("sections count = %d, want 0", sections.Count)
	}

	for _, path := range []string{"/api/similarity", "/api/export/apa", "/api/export/bib", "/api/export/markdown"} {
		if resp, _ := e.do(t, http.MethodGet, path, ""); resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, resp.StatusCode)
		}
	}

	if resp, _ := e.do(t, http.MethodPost, "/api/pipeline/run", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("pipeline run status = %d, want 400", resp.StatusCode)
	}
	if resp, _ := e.do(t, http.MethodPost, "/api/synthesis/run", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("synthesis run status = %d, want 400", resp.StatusCode)
	}
}

func TestPipelineRun(t *testing.T) {
	e := newTestEnv(t)
	e.runPipeline(t)

	var snap pipeline.Snapshot
	e.getJSON(t, "/api/pipeline/status", &snap)
	if snap.Running || snap.LastRun == nil {
		t.Errorf("pipeline status = %+v", snap)
	}
	for _, s := range snap.Stages {
		if s.Status != pipeline.StatusDone {
			t.Errorf("stage %s status = %s", s.ID, s.Status)
		}
	}

	var sim struct {
		Matrix      [][]float64 `json:"matrix"`
		PaperTitles []string    `json:"paper_titles"`
	}
	e.getJSON(t, "/api/similarity", &sim)
	if len(sim.Matrix) != 2 || len(sim.PaperTitles) != 2 {
		t.Errorf("similarity = %+v", sim)
	}

	var sections SectionsResponse
	e.getJSON(t, "/api/sections", &sections)
	if sections.Count != 2 {
		t.Fatalf("sections count = %d, want 2", sections.Count)
	}
	for _, p := range sections.Papers {
		if len(p.Sections) == 0 {
			t.Errorf("paper %s has no section files", p.Paper)
		}
	}

	var found PapersResponse
	e.getJSON(t, "/api/papers?q=message", &found)
	if found.Count != 1 || found.Papers[0].ID != "p2" {
		t.Errorf("index search = %+v", found)
	}
}

func TestPipelineRun_Conflict(t *testing.T) {
	e := newTestEnv(t)
	storage.WriteAll(config.PapersPath(e.root), corpus())

	tr := e.srv.deps.Runner.Tracker()
	tr.Start()
	defer tr.Finish(nil)
	if resp, _ := e.do(t, http.MethodPost, "/api/pipeline/run", ""); resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestSynthesisRun(t *testing.T) {
	e := newTestEnv(t)
	e.runPipeline(t)

	resp, body := e.do(t, http.MethodPost, "/api/synthesis/run", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var started StartedResponse
	if err := json.Unmarshal(body, &started); err != nil {
		t.Fatal(err)
	}
	if started.GenerationID == "" {
		t.Fatal("generation_id is empty")
	}

	var syn SynthesisResponse
	waitFor(t, "synthesis", func() bool {
		e.getJSON(t, "/api/synthesis", &syn)
		return !syn.Running
	})
	if syn.Error != "" {
		t.Fatalf("synthesis error = %s", syn.Error)
	}
	if !syn.Done || syn.GenerationID != started.GenerationID {
		t.Errorf("synthesis = done %v id %q", syn.Done, syn.GenerationID)
	}
	if syn.Parsed.PaperCount != 2 || syn.Parsed.Model != writing.TemplateProvider {
		t.Errorf("parsed = %+v", syn.Parsed)
	}
	if syn.Sections == nil || syn.Sections.Abstract == "" {
		t.Errorf("sections = %+v", syn.Sections)
	}

	resp, body = e.do(t, http.MethodGet, "/api/export/bib", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "@") {
		t.Errorf("bib export = %d %s", resp.StatusCode, body)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, BibDownload) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	resp, body = e.do(t, http.MethodGet, "/api/export/markdown", "")
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(string(body), writing.Title) {
		t.Errorf("markdown export = %d", resp.StatusCode)
	}
	resp, body = e.do(t, http.MethodGet, "/api/export/apa", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Doe, J. (2020).") {
		t.Errorf("apa export = %d %s", resp.StatusCode, body)
	}
}

func TestSynthesisRevise_Validation(t *testing.T) {
	e := newTestEnv(t)
	for _, body := range []string{`{}`, `{"instruction": "   "}`, `nope`} {
		if resp, _ := e.do(t, http.MethodPost, "/api/synthesis/revise", body); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("revise(%s) status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestSynthesisRevise_RecordsFailure(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.do(t, http.MethodPost, "/api/synthesis/revise", `{"instruction": "shorter"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var syn SynthesisResponse
	waitFor(t, "revision", func() bool {
		e.getJSON(t, "/api/synthesis", &syn)
		return !syn.Running
	})
	if syn.Error == "" || syn.Done {
		t.Errorf("synthesis = %+v, want recorded failure", syn)
	}
}

func TestReports(t *testing.T) {
	e := newTestEnv(t)

	var list ReportsResponse
	e.getJSON(t, "/api/reports", &list)
	if list.Count != 0 {
		t.Errorf("count = %d, want 0", list.Count)
	}

	storage.WriteAll(config.PapersPath(e.root), corpus())
	res, err := e.srv.deps.Archive.Archive("graphs")
	if err != nil {
		t.Fatal(err)
	}

	e.getJSON(t, "/api/reports", &list)
	if list.Count != 1 || list.Reports[0].ID != res.ID || list.Reports[0].Papers != 2 {
		t.Errorf("reports = %+v", list)
	}

	var d archive.Detail
	e.getJSON(t, "/api/reports/"+res.ID, &d)
	if d.ID != res.ID || len(d.Papers) != 2 || !strings.Contains(d.APA, "Lovelace, A.") {
		t.Errorf("detail = %+v", d)
	}

	tests := []struct {
		id   string
		want int
	}{
		{"missing_run", http.StatusNotFound},
		{`bad%5Cid`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if resp, body := e.do(t, http.MethodGet, "/api/reports/"+tt.id, ""); resp.StatusCode != tt.want {
			t.Errorf("GET report %s status = %d, want %d (body %s)", tt.id, resp.StatusCode, tt.want, body)
		}
	}
}

func TestCache(t *testing.T) {
	e := newTestEnv(t)
	e.runPipeline(t)

	var stats cache.Stats
	e.getJSON(t, "/api/cache/stats", &stats)
	if stats.AnalysisEntries != 1 {
		t.Errorf("analysis entries = %d, want 1", stats.AnalysisEntries)
	}

	if resp, body := e.do(t, http.MethodDelete, "/api/cache", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("DELETE status = %d, body %s", resp.StatusCode, body)
	}
	e.getJSON(t, "/api/cache/stats", &stats)
	if stats.AnalysisEntries != 0 || stats.SynthesisEntries != 0 {
		t.Errorf("stats after clear = %+v", stats)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	e := newTestEnv(t)
	if resp, _ := e.do(t, http.MethodGet, "/api/search", ""); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/search status = %d, want 405", resp.StatusCode)
	}
}

func TestSynthesisState_StaleJob(t *testing.T) {
	var st synthesisState
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)

	first, ok := st.begin(now)
	if !ok {
		t.Fatal("begin() = false on idle state")
	}
	if _, ok := st.begin(now); ok {
		t.Fatal("begin() = true while running")
	}
	st.finish(first, now, nil)

	second, _ := st.begin(now)
	if st.finish(first, now, errors.New("late failure")) {
		t.Error("stale job updated the state")
	}
	snap := st.snapshot()
	if !snap.running || snap.err != "" || snap.generationID != second {
		t.Errorf("snapshot = %+v", snap)
	}
	st.finish(second, now, nil)
	if snap := st.snapshot(); snap.running || !snap.done || snap.lastRun == nil {
		t.Errorf("snapshot = %+v, want done", snap)
	}
}
