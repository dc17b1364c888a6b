package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace layout.
const (
	DataDir     = "data"
	PDFDir      = "pdfs"
	OutputDir   = "output"
	SectionsDir = "sections"
	CacheDir    = "cache"

	PapersFile           = "papers.jsonl"
	DatasetFile          = "cleaned_dataset.json"
	AnalysisFile         = "analysis_results.json"
	SimilarityFile       = "similarity_results.json"
	DBFile               = "litsynth.db"
	SynthesisFile        = "research_synthesis.md"
	DocumentSectionsFile = "document_sections.json"
	BibFile              = "references.bib"
	EnvFile              = ".env"
)

// DataPath returns the path to the data directory from a workspace root.
func DataPath(root string) string {
	return filepath.Join(root, DataDir)
}

// PapersPath returns the path to papers.jsonl.
func PapersPath(root string) string {
	return filepath.Join(root, DataDir, PapersFile)
}

// DatasetPath returns the path to the topic-keyed cleaned dataset.
func DatasetPath(root string) string {
	return filepath.Join(root, DataDir, DatasetFile)
}

// AnalysisPath returns the path to analysis_results.json.
func AnalysisPath(root string) string {
	return filepath.Join(root, DataDir, AnalysisFile)
}

// SimilarityPath returns the path to similarity_results.json.
func SimilarityPath(root string) string {
	return filepath.Join(root, DataDir, SimilarityFile)
}

// SectionsPath returns the directory holding per-paper section files.
func SectionsPath(root string) string {
	return filepath.Join(root, DataDir, SectionsDir)
}

// CachePath returns the path to the cache directory.
func CachePath(root string) string {
	return filepath.Join(root, DataDir, CacheDir)
}

// DBPath returns the path to the SQLite database.
func DBPath(root string) string {
	return filepath.Join(root, DataDir, CacheDir, DBFile)
}

// PDFsPath returns the directory downloaded PDFs are stored under.
func PDFsPath(root string) string {
	return filepath.Join(root, PDFDir)
}

// OutputPath returns the output directory.
func OutputPath(root string) string {
	return filepath.Join(root, OutputDir)
}

// SynthesisPath returns the path to the generated markdown document.
func SynthesisPath(root string) string {
	return filepath.Join(root, OutputDir, SynthesisFile)
}

// DocumentSectionsPath returns the path to the generated section map.
func DocumentSectionsPath(root string) string {
	return filepath.Join(root, OutputDir, DocumentSectionsFile)
}

// BibPath returns the path to the generated BibTeX file.
func BibPath(root string) string {
	return filepath.Join(root, OutputDir, BibFile)
}

// EnsureWorkspace creates the workspace directories if they are missing.
func EnsureWorkspace(root string) error {
	for _, dir := range []string{DataPath(root), CachePath(root), SectionsPath(root), PDFsPath(root), OutputPath(root)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// ResolveWorkspace picks the workspace root: the explicit flag value,
// then the configured workspace_path, then the current directory.
func ResolveWorkspace(flag string, cfg GlobalConfig) (string, error) {
	path := flag
	if path == "" {
		path = cfg.WorkspacePath
	}
	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(ExpandPath(path))
	if err != nil {
		return "", fmt.Errorf("resolving workspace: %w", err)
	}
	return abs, nil
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
