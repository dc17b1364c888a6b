package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/matsen/litsynth/internal/analysis"
	"github.com/matsen/litsynth/internal/archive"
	"github.com/matsen/litsynth/internal/cache"
	"github.com/matsen/litsynth/internal/config"
	"github.com/matsen/litsynth/internal/generate"
	"github.com/matsen/litsynth/internal/logging"
	"github.com/matsen/litsynth/internal/pdf"
	"github.com/matsen/litsynth/internal/pipeline"
	"github.com/matsen/litsynth/internal/reference"
	"github.com/matsen/litsynth/internal/search"
	"github.com/matsen/litsynth/internal/storage"
	"github.com/matsen/litsynth/internal/writing"
)

// app holds what every command needs: the resolved config, the
// workspace root and, once opened, the database and cache.
type app struct {
	root   string
	cfg    config.GlobalConfig
	logger *slog.Logger
	db     *storage.DB
	cache  *cache.Cache
}

// mustSetup loads configuration, resolves and creates the workspace and
// installs the logger. Exits on error.
func mustSetup(format logging.Format) *app {
	cfg, err := config.Load(workspaceFlag)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	root, err := config.ResolveWorkspace(workspaceFlag, cfg)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	if workspaceFlag == "" {
		// Pick up a .env in a configured workspace.
		config.LoadDotEnv(root)
		base, err := config.LoadGlobalConfig()
		if err != nil {
			exitWithError(ExitConfigError, "loading config: %v", err)
		}
		cfg = base.Resolve(os.Getenv)
	}
	if err := config.EnsureWorkspace(root); err != nil {
		fmt.Fprintln(os.Stderr, config.HelpfulConfigMessage())
		exitWithError(ExitConfigError, "%v", err)
	}
	return &app{
		root:   root,
		cfg:    cfg,
		logger: logging.Setup(os.Stderr, format, cfg.LogLevel),
	}
}

// mustOpenDatabase opens the SQLite database and the cache on top of it.
// The caller is responsible for calling close().
func (a *app) mustOpenDatabase() {
	db, err := storage.OpenDB(config.DBPath(a.root))
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	a.db = db
	a.cache = cache.New(db, cache.WithTTL(a.cfg.CacheTTL), cache.WithLogger(a.logger))
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
}

// mustIndexPapers reads papers.jsonl and rebuilds the paper index from
// it, opening the database if needed. The caller must call close().
func (a *app) mustIndexPapers() []reference.Reference {
	refs, err := storage.ReadAll(config.PapersPath(a.root))
	if err != nil {
		exitWithError(ExitDataError, "reading papers: %v", err)
	}
	if a.db == nil {
		a.mustOpenDatabase()
	}
	if _, err := a.db.RebuildIndex(refs); err != nil {
		exitWithError(ExitError, "indexing papers: %v", err)
	}
	return refs
}

// commandContext returns a context cancelled on SIGINT or SIGTERM with
// a fresh run ID attached.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return logging.WithRunID(ctx, logging.NewRunID()), cancel
}

func (a *app) searcher() *search.Searcher {
	hc := &http.Client{Timeout: a.cfg.SearchTimeout}
	primary := search.NewS2Client(search.WithS2APIKey(a.cfg.S2APIKey), search.WithS2HTTPClient(hc))
	fallback := search.NewArxivClient(search.WithArxivHTTPClient(hc))
	return search.NewSearcher(primary, fallback, search.WithLogger(a.logger))
}

func (a *app) downloader() *pdf.Downloader {
	return pdf.NewDownloader(config.PDFsPath(a.root), pdf.WithLogger(a.logger))
}

func (a *app) analyzer() *analysis.Analyzer {
	opts := []analysis.Option{analysis.WithLogger(a.logger)}
	if a.cache != nil {
		opts = append(opts, analysis.WithCache(a.cache))
	}
	return analysis.NewAnalyzer(a.root, opts...)
}

func (a *app) writer() *writing.Writer {
	opts := []writing.Option{writing.WithLogger(a.logger)}
	if a.cache != nil {
		opts = append(opts, writing.WithCache(a.cache))
	}
	return writing.NewWriter(a.root, generate.FromConfig(a.cfg, a.logger), opts...)
}

func (a *app) archive() *archive.Store {
	return archive.New(a.root, archive.WithLogger(a.logger))
}

// runner wires every pipeline step. The database must be open.
func (a *app) runner(withSearch bool) *pipeline.Runner {
	opts := []pipeline.Option{
		pipeline.WithIndex(a.db),
		pipeline.WithArchive(a.archive()),
		pipeline.WithLogger(a.logger),
	}
	if withSearch {
		opts = append(opts, pipeline.WithSearcher(a.searcher()), pipeline.WithDownloader(a.downloader()))
	}
	return pipeline.New(a.root, a.analyzer(), a.writer(), opts...)
}

// exitCodeFor maps domain errors to exit codes.
func exitCodeFor(err error) int {
	var apiErr *search.APIError
	var genErr *generate.APIError
	switch {
	case errors.Is(err, analysis.ErrNoPapers),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, writing.ErrNoDocument),
		errors.Is(err, pipeline.ErrNoResults):
		return ExitDataError
	case errors.Is(err, writing.ErrNoProvider):
		return ExitConfigError
	case errors.As(err, &apiErr), errors.As(err, &genErr):
		return ExitAPIError
	default:
		return ExitError
	}
}
