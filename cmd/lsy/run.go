package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/litsynth/internal/logging"
	"github.com/matsen/litsynth/internal/pipeline"
	"github.com/matsen/litsynth/internal/search"
)

var (
	runLimit int
	runPDFs  bool
)

func init() {
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "Papers per topic (default: search_limit from config)")
	runCmd.Flags().BoolVar(&runPDFs, "pdfs", false, "Download open-access PDFs before analysis")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [topic]...",
	Short: "Run the full pipeline and archive the result",
	Long: `Run search, PDF download (with --pdfs), analysis and synthesis, then
copy the outputs into a timestamped folder under output/.

Without topics the papers already in data/papers.jsonl are used.

Examples:
  lsy run "graph neural networks, message passing" --limit 5
  lsy run --human`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	a := mustSetup(logging.FormatText)
	a.mustOpenDatabase()
	defer a.close()

	limit := runLimit
	if limit <= 0 {
		limit = a.cfg.SearchLimit
	}
	topics := search.NormalizeTopics(args)

	ctx, cancel := commandContext()
	defer cancel()

	runner := a.runner(len(topics) > 0)
	sum, err := runner.Run(ctx, pipeline.RunOptions{Topics: topics, Limit: limit, PDFs: runPDFs})
	if err != nil {
		exitWithError(exitCodeFor(err), "%v", err)
	}

	if !humanOutput {
		return outputJSON(sum)
	}
	if len(topics) > 0 {
		outputHuman("Topics:   %s\n", strings.Join(topics, ", "))
	}
	outputHuman("Papers:   %d\n", sum.Papers)
	if runPDFs {
		outputHuman("PDFs:     %d\n", sum.Downloaded)
	}
	outputHuman("Provider: %s\n", sum.Provider)
	if len(sum.Fallbacks) > 0 {
		outputHuman("Template: %s\n", strings.Join(sum.Fallbacks, ", "))
	}
	if sum.Archive != nil {
		outputHuman("Archive:  %s\n", sum.Archive.Path)
		if len(sum.Archive.Skipped) > 0 {
			outputHuman("Skipped:  %s\n", strings.Join(sum.Archive.Skipped, ", "))
		}
	}
	outputHuman("Elapsed:  %s\n", formatDuration(sum.Elapsed))
	return nil
}
