package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/matsen/litsynth/internal/archive"
	"github.com/matsen/litsynth/internal/logging"
)

func init() {
	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsGetCmd)
	rootCmd.AddCommand(reportsCmd)
}

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Browse archived pipeline runs",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runReportsList,
}

func runReportsList(cmd *cobra.Command, args []string) error {
	a := mustSetup(logging.FormatText)

	reports, err := a.archive().List()
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if !humanOutput {
		if reports == nil {
			reports = []archive.Report{}
		}
		return outputJSON(reports)
	}
	if len(reports) == 0 {
		outputHuman("No reports\n")
		return nil
	}
	for _, r := range reports {
		outputHuman("%s [%s]\n", r.ID, r.Status)
		outputHuman("   %s, %d papers, %d words, %s\n", truncateString(r.Topic, ListTitleMaxLen), r.Papers, r.Words, r.Model)
	}
	return nil
}

var reportsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show an archived run",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportsGet,
}

func runReportsGet(cmd *cobra.Command, args []string) error {
	a := mustSetup(logging.FormatText)

	d, err := a.archive().Get(args[0])
	switch {
	case errors.Is(err, archive.ErrInvalidID):
		exitWithError(ExitError, "%v", err)
	case errors.Is(err, archive.ErrNotFound):
		exitWithError(ExitDataError, "report not found: %s\n\nRun 'lsy reports list' to see archived runs.", args[0])
	case err != nil:
		exitWithError(ExitError, "%v", err)
	}

	if !humanOutput {
		return outputJSON(d)
	}
	outputHuman("%s\n", d.ID)
	outputHuman("Topic:    %s\n", d.Parsed.Topic)
	outputHuman("Date:     %s\n", d.Parsed.Date)
	outputHuman("Provider: %s\n", d.Parsed.Model)
	outputHuman("Papers:   %d\n\n", len(d.Papers))
	if d.Parsed.Abstract != "" {
		outputHuman("%s\n\n", wrapText(d.Parsed.Abstract, TextWrapWidth, ""))
	}
	if d.APA != "" {
		outputHuman("References:\n\n%s\n", d.APA)
	}
	return nil
}
