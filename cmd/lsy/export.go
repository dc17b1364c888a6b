package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matsen/litsynth/internal/archive"
	"github.com/matsen/litsynth/internal/clipboard"
	"github.com/matsen/litsynth/internal/config"
	"github.com/matsen/litsynth/internal/export"
	"github.com/matsen/litsynth/internal/logging"
	"github.com/matsen/litsynth/internal/reference"
	"github.com/matsen/litsynth/internal/storage"
	"github.com/matsen/litsynth/internal/writing"
)

var (
	exportReport string
	exportOutput string
	exportCopy   bool
)

func init() {
	exportCmd.PersistentFlags().StringVar(&exportReport, "report", "", "Export from an archived run instead of the workspace")
	exportCmd.PersistentFlags().StringVarP(&exportOutput, "output", "o", "", "Write to a file instead of stdout")
	exportCmd.PersistentFlags().BoolVar(&exportCopy, "copy", false, "Copy to the system clipboard instead of stdout")
	exportCmd.AddCommand(exportAPACmd)
	exportCmd.AddCommand(exportBibCmd)
	exportCmd.AddCommand(exportMarkdownCmd)
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export references or the synthesis document",
	Long: `Export the references of the collected papers as APA 7 text or
BibTeX, or the synthesis document as markdown.

Output is written as-is (not JSON) to stdout or to --output.`,
}

var exportAPACmd = &cobra.Command{
	Use:   "apa",
	Short: "Export references in APA 7 style",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustSetup(logging.FormatText)
		refs := mustExportPapers(a)
		return writeExport(export.ToAPAList(refs) + "\n")
	},
}

var exportBibCmd = &cobra.Command{
	Use:   "bib",
	Short: "Export references as BibTeX",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustSetup(logging.FormatText)
		refs := mustExportPapers(a)
		return writeExport(export.ToBibTeXList(refs))
	},
}

var exportMarkdownCmd = &cobra.Command{
	Use:   "markdown",
	Short: "Export the synthesis document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustSetup(logging.FormatText)
		var md string
		if exportReport != "" {
			d := mustGetReport(a)
			md = d.Markdown
		} else {
			var err error
			md, err = writing.LoadDocument(a.root)
			if err != nil {
				exitWithError(exitCodeFor(err), "%v\n\nRun 'lsy write' first.", err)
			}
		}
		if md == "" {
			exitWithError(ExitDataError, "no synthesis document")
		}
		return writeExport(md)
	},
}

func mustGetReport(a *app) *archive.Detail {
	d, err := a.archive().Get(exportReport)
	if errors.Is(err, archive.ErrNotFound) {
		exitWithError(ExitDataError, "report not found: %s", exportReport)
	}
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	return d
}

// mustExportPapers returns the papers of --report, or the workspace
// corpus.
func mustExportPapers(a *app) []reference.Reference {
	var refs []reference.Reference
	if exportReport != "" {
		refs = mustGetReport(a).Papers
	} else {
		var err error
		refs, err = storage.ReadAll(config.PapersPath(a.root))
		if err != nil {
			exitWithError(ExitError, "reading papers: %v", err)
		}
	}
	if len(refs) == 0 {
		exitWithError(ExitDataError, "no papers found\n\nRun 'lsy search' first.")
	}
	return refs
}

func writeExport(text string) error {
	if exportCopy {
		if err := clipboard.New().Copy(text); err != nil {
			if errors.Is(err, clipboard.ErrClipboardUnavailable) {
				exitWithError(ExitError, "clipboard unavailable\n\nInstall wl-copy, xclip or xsel, or use --output.")
			}
			exitWithError(ExitError, "copying to clipboard: %v", err)
		}
		if humanOutput {
			outputHuman("Copied to clipboard\n")
			return nil
		}
		return outputJSON(StatusResponse{Status: "copied"})
	}
	if exportOutput == "" {
		_, err := os.Stdout.WriteString(text)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(exportOutput), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(exportOutput, []byte(text), 0644); err != nil {
		exitWithError(ExitError, "writing %s: %v", exportOutput, err)
	}
	if humanOutput {
		outputHuman("Wrote %s\n", exportOutput)
		return nil
	}
	return outputJSON(StatusResponse{Status: "written", Path: exportOutput})
}
