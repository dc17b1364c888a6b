package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/matsen/litsynth/internal/archive"
	"github.com/matsen/litsynth/internal/config"
	"github.com/matsen/litsynth/internal/export"
	"github.com/matsen/litsynth/internal/reference"
	"github.com/matsen/litsynth/internal/storage"
)

// Download names of the exported files.
const (
	APADownload      = "references_APA7.txt"
	BibDownload      = "references.bib"
	MarkdownDownload = "research_synthesis.md"
)

// latestOr returns name in the latest archived run if present, and
// fallback otherwise.
func (s *Server) latestOr(name, fallback string) string {
	if s.deps.Archive != nil {
		if p, ok := s.deps.Archive.LatestFile(name); ok {
			return p
		}
	}
	return fallback
}

// exportPapers returns the papers of the latest archived run, or the
// workspace corpus.
func (s *Server) exportPapers() ([]reference.Reference, error) {
	if s.deps.Archive != nil {
		if p, ok := s.deps.Archive.LatestFile(archive.PapersFile); ok {
			var refs []reference.Reference
			if err := storage.ReadJSON(p, &refs); err != nil {
				return nil, err
			}
			if len(refs) > 0 {
				return refs, nil
			}
		}
	}
	return storage.ReadAll(config.PapersPath(s.root))
}

func attachment(w http.ResponseWriter, name, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
}

func (s *Server) handleExportAPA(w http.ResponseWriter, r *http.Request) {
	refs, err := s.exportPapers()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if len(refs) == 0 {
		s.sendError(w, http.StatusNotFound, "No papers found")
		return
	}
	attachment(w, APADownload, "text/plain; charset=utf-8")
	fmt.Fprint(w, export.ToAPAList(refs))
}

func (s *Server) handleExportBib(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, s.latestOr(archive.BibFile, config.BibPath(s.root)), BibDownload, "text/plain; charset=utf-8", "No BibTeX file found")
}

func (s *Server) handleExportMarkdown(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, s.latestOr(archive.ReportFile, config.SynthesisPath(s.root)), MarkdownDownload, "text/markdown; charset=utf-8", "No synthesis found")
}

func (s *Server) serveExport(w http.ResponseWriter, r *http.Request, path, name, contentType, missing string) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.sendError(w, http.StatusNotFound, missing)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	attachment(w, name, contentType)
	w.Write(data)
}
