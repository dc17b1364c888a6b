package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/litsynth/internal/logging"
	"github.com/matsen/litsynth/internal/pipeline"
	"github.com/matsen/litsynth/internal/server"
)

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", server.DefaultAddr, "Listen address")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workspace over a JSON HTTP API",
	Long: `Start the HTTP API for the workspace. Pipeline and synthesis runs
started through the API execute in the background; poll
/api/pipeline/status and /api/synthesis for progress.

The paper index is rebuilt from data/papers.jsonl at startup and after
every search.

Logs are written to stderr as JSON lines.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a := mustSetup(logging.FormatJSON)
	// Papers collected by earlier CLI runs are searchable from the start.
	a.mustIndexPapers()
	defer a.close()

	ctx, cancel := commandContext()
	defer cancel()

	store := a.archive()
	wr := a.writer()
	runner := pipeline.New(a.root, a.analyzer(), wr,
		pipeline.WithIndex(a.db),
		pipeline.WithLogger(a.logger))

	srv := server.New(a.root, server.Deps{
		Runner:   runner,
		Writer:   wr,
		Searcher: a.searcher(),
		Archive:  store,
		Index:    a.db,
		Cache:    a.cache,
	}, server.WithLogger(a.logger))

	if err := srv.ListenAndServe(ctx, serveAddr); err != nil {
		exitWithError(ExitError, "server: %v", err)
	}
	return nil
}
