package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/litsynth/internal/analysis"
	"github.com/matsen/litsynth/internal/logging"
	"github.com/matsen/litsynth/internal/pipeline"
	"github.com/matsen/litsynth/internal/similarity"
	"github.com/matsen/litsynth/internal/storage"
)

var similarityTop int

func init() {
	rootCmd.AddCommand(analyzeCmd)
	similarityCmd.Flags().IntVar(&similarityTop, "top", 10, "Number of most similar pairs to show")
	rootCmd.AddCommand(similarityCmd)
	rootCmd.AddCommand(sectionsCmd)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Extract sections and findings and compare the collected papers",
	Long: `Analyze data/papers.jsonl: split each paper (PDF text when downloaded,
otherwise the abstract) into sections, extract key findings and
methodology, compute cross-paper statistics and the TF-IDF cosine
similarity matrix.

Writes data/analysis_results.json, data/similarity_results.json and
data/sections/. Results are cached by content hash.`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

// AnalyzeResult summarizes an analysis run.
type AnalyzeResult struct {
	Papers         int                    `json:"papers"`
	KeyThemes      []string               `json:"key_themes"`
	VocabularySize int                    `json:"tfidf_vocabulary_size"`
	Trends         []string               `json:"research_trends"`
	Citations      analysis.CitationStats `json:"citation_analysis"`
	Stages         []pipeline.Stage       `json:"stages"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a := mustSetup(logging.FormatText)
	a.mustOpenDatabase()
	defer a.close()

	ctx, cancel := commandContext()
	defer cancel()

	runner := a.runner(false)
	res, err := runner.Analyze(ctx)
	if err != nil {
		exitWithError(exitCodeFor(err), "analysis: %v", err)
	}

	out := AnalyzeResult{
		Papers:         len(res.Papers),
		KeyThemes:      res.KeyThemes,
		VocabularySize: res.TFIDFVocabularySize,
		Trends:         res.CrossPaperAnalysis.ResearchTrends,
		Citations:      res.CrossPaperAnalysis.CitationAnalysis,
		Stages:         runner.Tracker().Snapshot().Stages,
	}
	if humanOutput {
		outputHuman("Analyzed %d papers\n", out.Papers)
		for _, s := range out.Stages {
			outputHuman("  [%s] %s: %s\n", s.Status, s.Title, s.Subtitle)
		}
		if len(out.KeyThemes) > 0 {
			outputHuman("Key themes: %s\n", strings.Join(out.KeyThemes, ", "))
		}
		for _, t := range out.Trends {
			outputHuman("  - %s\n", t)
		}
		return nil
	}
	return outputJSON(out)
}

var similarityCmd = &cobra.Command{
	Use:   "similarity",
	Short: "Show the paper similarity results",
	Long: `Show data/similarity_results.json: the cosine similarity matrix, the
most similar paper pairs and each paper's top TF-IDF terms.`,
	Args: cobra.NoArgs,
	RunE: runSimilarity,
}

func runSimilarity(cmd *cobra.Command, args []string) error {
	a := mustSetup(logging.FormatText)

	res, err := analysis.LoadSimilarity(a.root)
	if errors.Is(err, storage.ErrNotFound) {
		exitWithError(ExitDataError, "no similarity results\n\nRun 'lsy analyze' with at least %d papers first.", similarity.MinDocuments)
	}
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if !humanOutput {
		return outputJSON(res)
	}
	pairs := res.Pairs
	if similarityTop > 0 && len(pairs) > similarityTop {
		pairs = pairs[:similarityTop]
	}
	outputHuman("Most similar pairs (%d papers):\n", len(res.PaperTitles))
	for i, p := range pairs {
		outputHuman("%d. [%.3f] %s\n", i+1, p.Similarity, truncateString(p.PaperATitle, ListTitleMaxLen))
		outputHuman("           %s\n", truncateString(p.PaperBTitle, ListTitleMaxLen))
	}
	if len(res.TopTerms) > 0 {
		fmt.Println()
		outputHuman("Top terms:\n")
		for _, dt := range res.TopTerms {
			terms := make([]string, len(dt.TopTerms))
			for i, t := range dt.TopTerms {
				terms[i] = t.Term
			}
			outputHuman("  %s: %s\n", truncateString(dt.Title, ListTitleMaxLen), strings.Join(terms, ", "))
		}
	}
	return nil
}

var sectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "Show the extracted sections and findings of each paper",
	Args:  cobra.NoArgs,
	RunE:  runSections,
}

// PaperSectionsResult is one paper in the sections command output.
type PaperSectionsResult struct {
	ID          int                  `json:"id"`
	Title       string               `json:"title"`
	Sections    analysis.Sections    `json:"sections"`
	Valid       int                  `json:"valid_sections"`
	KeyFindings []string             `json:"key_findings"`
	Methodology analysis.Methodology `json:"methodology"`
}

func runSections(cmd *cobra.Command, args []string) error {
	a := mustSetup(logging.FormatText)

	res, err := analysis.LoadResults(a.root)
	if errors.Is(err, storage.ErrNotFound) {
		exitWithError(ExitDataError, "no analysis results\n\nRun 'lsy analyze' first.")
	}
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	out := make([]PaperSectionsResult, len(res.Papers))
	for i, p := range res.Papers {
		out[i] = PaperSectionsResult{
			ID:          p.ID,
			Title:       p.Title,
			Sections:    p.Sections,
			Valid:       p.ValidSections(),
			KeyFindings: p.KeyFindings,
			Methodology: p.Methodology,
		}
	}
	if !humanOutput {
		return outputJSON(out)
	}
	for _, p := range out {
		outputHuman("%d. %s (%d/%d sections)\n", p.ID+1, truncateString(p.Title, DetailTitleMaxLen), p.Valid, len(analysis.Labels))
		for _, l := range analysis.Labels {
			if text := p.Sections.Get(l); text != "" {
				outputHuman("   %s: %s\n", l, wrapText(truncateString(text, 200), TextWrapWidth, "      "))
			}
		}
		for _, f := range p.KeyFindings {
			outputHuman("   * %s\n", wrapText(f, TextWrapWidth, "     "))
		}
		fmt.Println()
	}
	return nil
}
