// Package main provides the lsy CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	// workspaceFlag overrides the configured workspace
	workspaceFlag string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lsy",
	Short: "Research paper search, analysis and synthesis",
	Long: `lsy collects papers on research topics and turns them into a
synthesis report.

Pipeline:
  - Search Semantic Scholar (arXiv fallback) and download open PDFs
  - Extract sections and key findings, compare papers with TF-IDF
  - Generate a synthesis document with the configured AI providers,
    falling back to templates when none is available
  - Archive each run with its references in APA and BibTeX

Data lives in a workspace directory (data/, pdfs/, output/).
All commands output JSON by default; use --human for readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "", "Workspace directory (default: workspace_path from config, then the current directory)")
	rootCmd.Version = Version
}
