package main

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/litsynth/internal/analysis"
	"github.com/matsen/litsynth/internal/config"
	"github.com/matsen/litsynth/internal/logging"
	"github.com/matsen/litsynth/internal/storage"
	"github.com/matsen/litsynth/internal/writing"
)

func init() {
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(reviseCmd)
	rootCmd.AddCommand(reviewCmd)
}

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Generate the synthesis document from the analysis",
	Long: `Generate output/research_synthesis.md, output/document_sections.json
and output/references.bib from data/analysis_results.json.

Each section is requested from the configured AI providers in order
(Gemini, OpenAI or Hugging Face, Cohere, Ollama, Claude CLI); a section
falls back to a template when every provider fails.`,
	Args: cobra.NoArgs,
	RunE: runWrite,
}

// WriteResult is the response of the write and revise commands.
type WriteResult struct {
	GenerationID string   `json:"generation_id,omitempty"`
	Provider     string   `json:"provider"`
	Fallbacks    []string `json:"fallbacks,omitempty"`
	Cached       bool     `json:"cached"`
	Path         string   `json:"path"`
	Words        int      `json:"words"`
}

func runWrite(cmd *cobra.Command, args []string) error {
	a := mustSetup(logging.FormatText)
	a.mustOpenDatabase()
	defer a.close()

	res, err := analysis.LoadResults(a.root)
	if errors.Is(err, storage.ErrNotFound) {
		exitWithError(ExitDataError, "no analysis results\n\nRun 'lsy analyze' first.")
	}
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	ctx, cancel := commandContext()
	defer cancel()

	syn, err := a.writer().Write(ctx, res)
	if err != nil {
		exitWithError(exitCodeFor(err), "writing synthesis: %v", err)
	}

	out := WriteResult{
		GenerationID: syn.GenerationID,
		Provider:     syn.Provider,
		Fallbacks:    syn.Fallbacks,
		Cached:       syn.Cached,
		Path:         config.SynthesisPath(a.root),
		Words:        len(strings.Fields(syn.Markdown)),
	}
	if humanOutput {
		outputHuman("Wrote %s (%d words, provider: %s)\n", out.Path, out.Words, out.Provider)
		if len(out.Fallbacks) > 0 {
			outputHuman("Template fallback used for: %s\n", strings.Join(out.Fallbacks, ", "))
		}
		return nil
	}
	return outputJSON(out)
}

var reviseCmd = &cobra.Command{
	Use:   "revise <instruction>...",
	Short: "Revise the synthesis document with an instruction",
	Long: `Ask the first available AI provider to rewrite the current synthesis
document following the instruction. Requires an existing document and a
configured provider.

Example:
  lsy revise "shorten the discussion and add a limitations paragraph"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRevise,
}

func runRevise(cmd *cobra.Command, args []string) error {
	a := mustSetup(logging.FormatText)

	ctx, cancel := commandContext()
	defer cancel()

	syn, err := a.writer().Revise(ctx, strings.Join(args, " "))
	if err != nil {
		exitWithError(exitCodeFor(err), "revising: %v", err)
	}

	out := WriteResult{
		Provider: syn.Provider,
		Path:     config.SynthesisPath(a.root),
		Words:    len(strings.Fields(syn.Markdown)),
	}
	if humanOutput {
		outputHuman("Revised %s (%d words, provider: %s)\n", out.Path, out.Words, out.Provider)
		return nil
	}
	return outputJSON(out)
}

var reviewCmd = &cobra.Command{
	Use:   "review [file]",
	Short: "Check a draft for abstract, methods and results sections",
	Long: `Review a markdown draft (default: output/research_synthesis.md): split it
into abstract, methods and results by heading keywords and score its
completeness out of 100.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReview,
}

func runReview(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		path = args[0]
	} else {
		a := mustSetup(logging.FormatText)
		path = config.SynthesisPath(a.root)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		exitWithError(ExitDataError, "draft not found: %s", path)
	}
	if err != nil {
		exitWithError(ExitError, "reading draft: %v", err)
	}

	review := writing.ReviewDraft(string(data))
	if !humanOutput {
		return outputJSON(review)
	}
	check := func(ok bool) string {
		if ok {
			return "yes"
		}
		return "missing"
	}
	outputHuman("Words:    %d\n", review.WordCount)
	outputHuman("Abstract: %s\n", check(review.HasAbstract))
	outputHuman("Methods:  %s\n", check(review.HasMethods))
	outputHuman("Results:  %s\n", check(review.HasResults))
	outputHuman("Score:    %d/100 (%s)\n", review.Quality.Score, review.Quality.Remarks)
	return nil
}
