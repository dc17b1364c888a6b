package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/matsen/litsynth/internal/analysis"
	"github.com/matsen/litsynth/internal/archive"
	"github.com/matsen/litsynth/internal/config"
	"github.com/matsen/litsynth/internal/filter"
	"github.com/matsen/litsynth/internal/reference"
	"github.com/matsen/litsynth/internal/search"
	"github.com/matsen/litsynth/internal/similarity"
	"github.com/matsen/litsynth/internal/storage"
	"github.com/matsen/litsynth/internal/writing"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 100
	defaultPapersLimit = 50

	sortCitations = "citations"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	OK               bool   `json:"ok"`
	PapersLoaded     int    `json:"papers_loaded"`
	PapersIndexed    int    `json:"papers_indexed"`
	SynthesisReady   bool   `json:"synthesis_ready"`
	PipelineRunning  bool   `json:"pipeline_running"`
	SynthesisRunning bool   `json:"synthesis_running"`
	Timestamp        string `json:"timestamp"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	refs, err := storage.ReadAll(config.PapersPath(s.root))
	if err != nil {
		s.logger.Warn("reading papers", "error", err)
	}
	_, statErr := os.Stat(config.SynthesisPath(s.root))
	resp := StatusResponse{
		OK:               true,
		PapersLoaded:     len(refs),
		SynthesisReady:   statErr == nil,
		SynthesisRunning: s.synth.isRunning(),
		Timestamp:        s.now().Format("2006-01-02T15:04:05"),
	}
	if s.deps.Runner != nil {
		resp.PipelineRunning = s.deps.Runner.Tracker().Running()
	}
	if s.deps.Index != nil {
		if resp.PapersIndexed, err = s.deps.Index.Count(); err != nil {
			s.logger.Warn("counting indexed papers", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// SearchRequest is the body of POST /api/search. Topics may be a list
// or a comma separated string; Topic is accepted as an alias.
type SearchRequest struct {
	Topics json.RawMessage `json:"topics"`
	Topic  string          `json:"topic"`
	Limit  int             `json:"limit"`
}

func (req SearchRequest) topicList() []string {
	if len(req.Topics) > 0 {
		var list []string
		if err := json.Unmarshal(req.Topics, &list); err == nil {
			return search.NormalizeTopics(list)
		}
		var one string
		if err := json.Unmarshal(req.Topics, &one); err == nil {
			return search.SplitTopics(one)
		}
	}
	return search.SplitTopics(req.Topic)
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Papers  []reference.Reference `json:"papers"`
	Count   int                   `json:"count"`
	Topics  []string              `json:"topics"`
	Dataset *search.Dataset       `json:"dataset"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Searcher == nil {
		s.sendError(w, http.StatusServiceUnavailable, "search is not configured")
		return
	}
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid JSON request")
		return
	}
	topics := req.topicList()
	if len(topics) == 0 {
		s.sendError(w, http.StatusBadRequest, "topic is required")
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	ds, err := s.deps.Searcher.SearchTopics(r.Context(), topics, limit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	papers := ds.All()
	if len(papers) > 0 {
		if err := search.SaveDataset(s.root, ds); err != nil {
			s.internalError(w, r, err)
			return
		}
		s.reindex(papers)
	}
	writeJSON(w, http.StatusOK, SearchResponse{Papers: papers, Count: len(papers), Topics: topics, Dataset: ds})
}

// PapersResponse is the body of GET /api/papers.
type PapersResponse struct {
	Papers []reference.Reference `json:"papers"`
	Count  int                   `json:"count"`
}

// reindex replaces the paper index with papers. Failures only degrade
// q searches, so they are logged.
func (s *Server) reindex(papers []reference.Reference) {
	if s.deps.Index == nil {
		return
	}
	if _, err := s.deps.Index.RebuildIndex(papers); err != nil {
		s.logger.Warn("rebuilding paper index", "error", err)
	}
}

// handlePapers lists the corpus, or searches the paper index when q is
// given. sort=citations lists the index by citation count instead of
// file order. The author, year and venue parameters narrow any result.
func (s *Server) handlePapers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	f, err := filter.New(query["author"], query.Get("year"), query.Get("venue"))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	sortBy := query.Get("sort")
	if sortBy != "" && sortBy != sortCitations {
		s.sendError(w, http.StatusBadRequest, "sort must be "+sortCitations)
		return
	}
	q := strings.TrimSpace(query.Get("q"))
	if (q != "" || sortBy != "") && s.deps.Index == nil {
		s.sendError(w, http.StatusServiceUnavailable, "paper index is not available")
		return
	}
	limit := defaultPapersLimit
	if v, convErr := strconv.Atoi(query.Get("limit")); convErr == nil && v > 0 {
		limit = v
	}

	var papers []reference.Reference
	switch {
	case q != "":
		papers, err = s.deps.Index.Search(q, limit)
	case sortBy == sortCitations:
		papers, err = s.deps.Index.ListAll(limit)
	default:
		papers, err = storage.ReadAll(config.PapersPath(s.root))
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	papers = f.Apply(papers)
	if papers == nil {
		papers = []reference.Reference{}
	}
	writeJSON(w, http.StatusOK, PapersResponse{Papers: papers, Count: len(papers)})
}

func (s *Server) handlePaper(w http.ResponseWriter, r *http.Request) {
	if s.deps.Index == nil {
		s.sendError(w, http.StatusServiceUnavailable, "paper index is not available")
		return
	}
	id := r.PathValue("id")
	ref, err := s.deps.Index.GetByID(id)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if ref == nil {
		s.sendError(w, http.StatusNotFound, "paper not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

// DatasetResponse is the body of GET /api/dataset.
type DatasetResponse struct {
	Dataset *search.Dataset `json:"dataset"`
	Topics  []string        `json:"topics"`
	Total   int             `json:"total"`
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := search.LoadDataset(s.root)
	if errors.Is(err, storage.ErrNotFound) {
		ds = &search.Dataset{}
	} else if err != nil {
		s.internalError(w, r, err)
		return
	}
	topics := ds.Topics()
	if topics == nil {
		topics = []string{}
	}
	writeJSON(w, http.StatusOK, DatasetResponse{Dataset: ds, Topics: topics, Total: ds.Total()})
}

// handleSimilarity returns the workspace similarity result, or the one
// of the latest archived run.
func (s *Server) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	res, err := analysis.LoadSimilarity(s.root)
	if errors.Is(err, storage.ErrNotFound) && s.deps.Archive != nil {
		if path, ok := s.deps.Archive.LatestFile(archive.SimilarityFile); ok {
			var archived similarity.Result
			err = storage.ReadJSON(path, &archived)
			res = &archived
		}
	}
	if errors.Is(err, storage.ErrNotFound) {
		s.sendError(w, http.StatusNotFound, "No similarity results. Run extraction pipeline first.")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PaperSections holds the section files of one paper directory.
type PaperSections struct {
	Paper    string            `json:"paper"`
	Sections map[string]string `json:"sections"`
}

// SectionsResponse is the body of GET /api/sections.
type SectionsResponse struct {
	Papers []PaperSections `json:"papers"`
	Count  int             `json:"count"`
}

func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	papers, err := readSectionDirs(config.SectionsPath(s.root))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SectionsResponse{Papers: papers, Count: len(papers)})
}

func readSectionDirs(root string) ([]PaperSections, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return []PaperSections{}, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	papers := []PaperSections{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		files, err := filepath.Glob(filepath.Join(root, e.Name(), "*.txt"))
		if err != nil {
			return nil, err
		}
		p := PaperSections{Paper: e.Name(), Sections: make(map[string]string, len(files))}
		for _, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				return nil, err
			}
			p.Sections[strings.TrimSuffix(filepath.Base(f), ".txt")] = string(data)
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// ReportsResponse is the body of GET /api/reports.
type ReportsResponse struct {
	Reports []archive.Report `json:"reports"`
	Count   int              `json:"count"`
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if s.deps.Archive == nil {
		writeJSON(w, http.StatusOK, ReportsResponse{Reports: []archive.Report{}})
		return
	}
	reports, err := s.deps.Archive.List()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReportsResponse{Reports: reports, Count: len(reports)})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Archive == nil {
		s.sendError(w, http.StatusNotFound, "report not found")
		return
	}
	d, err := s.deps.Archive.Get(r.PathValue("id"))
	switch {
	case errors.Is(err, archive.ErrInvalidID):
		s.sendError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, archive.ErrNotFound):
		s.sendError(w, http.StatusNotFound, "report not found")
	case err != nil:
		s.internalError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, d)
	}
}

// loadSynthesis returns the latest document and sections, preferring
// the newest archived run over the workspace output.
func (s *Server) loadSynthesis() (string, *writing.Sections) {
	mdPath := config.SynthesisPath(s.root)
	secPath := config.DocumentSectionsPath(s.root)
	if s.deps.Archive != nil {
		if p, ok := s.deps.Archive.LatestFile(archive.ReportFile); ok {
			mdPath = p
		}
		if p, ok := s.deps.Archive.LatestFile(archive.SectionsFile); ok {
			secPath = p
		}
	}
	md, _ := os.ReadFile(mdPath)
	var sections writing.Sections
	if err := storage.ReadJSON(secPath, &sections); err != nil {
		return string(md), nil
	}
	return string(md), &sections
}
