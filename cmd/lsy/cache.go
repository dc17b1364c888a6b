package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/litsynth/internal/logging"
)

var (
	clearAnalysis  bool
	clearSynthesis bool
	clearExpired   bool
)

func init() {
	cacheClearCmd.Flags().BoolVar(&clearAnalysis, "analysis", false, "Clear only analysis entries")
	cacheClearCmd.Flags().BoolVar(&clearSynthesis, "synthesis", false, "Clear only synthesis and section entries")
	cacheClearCmd.Flags().BoolVar(&clearExpired, "expired", false, "Clear only entries older than the cache TTL")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the analysis and synthesis cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry counts and database size",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustSetup(logging.FormatText)
		a.mustOpenDatabase()
		defer a.close()

		stats, err := a.cache.Stats()
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		if humanOutput {
			outputHuman("Analysis entries:  %d\n", stats.AnalysisEntries)
			outputHuman("Synthesis entries: %d\n", stats.SynthesisEntries)
			outputHuman("Database:          %s (%.2f MB)\n", stats.CachePath, stats.TotalSizeMB)
			return nil
		}
		return outputJSON(stats)
	},
}

// ClearResult is the response of cache clear.
type ClearResult struct {
	Status  string `json:"status"`
	Scope   string `json:"scope"`
	Removed int64  `json:"removed,omitempty"`
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cache entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustSetup(logging.FormatText)
		a.mustOpenDatabase()
		defer a.close()

		res := ClearResult{Status: "cleared"}
		var err error
		switch {
		case clearExpired:
			res.Scope = "expired"
			res.Removed, err = a.cache.Purge()
		case clearAnalysis && !clearSynthesis:
			res.Scope = "analysis"
			err = a.cache.InvalidateAnalysis()
		case clearSynthesis && !clearAnalysis:
			res.Scope = "synthesis"
			err = a.cache.InvalidateSynthesis()
		default:
			res.Scope = "all"
			err = a.cache.InvalidateAll()
		}
		if err != nil {
			exitWithError(ExitError, "clearing cache: %v", err)
		}
		if humanOutput {
			outputHuman("Cleared %s cache entries\n", res.Scope)
			return nil
		}
		return outputJSON(res)
	},
}
