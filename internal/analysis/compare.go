package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/matsen/litsynth/internal/similarity"
)

const (
	// KeywordMinLength is the shortest word counted as a keyword.
	KeywordMinLength = 4
	// CommonKeywordLimit is the number of keywords reported.
	CommonKeywordLimit = 10
	// TrendLimit is the number of keywords turned into research trends.
	TrendLimit = 3
	// ThemeLimit is the number of keywords reported as key themes.
	ThemeLimit = 5
)

// CitationStats summarises citation counts across the corpus.
type CitationStats struct {
	Average float64 `json:"average"`
	Max     int     `json:"max"`
	Min     int     `json:"min"`
	Total   int     `json:"total"`
}

// CrossAnalysis is the corpus-level comparison.
type CrossAnalysis struct {
	CommonKeywords   Counts        `json:"common_keywords"`
	YearDistribution Counts        `json:"year_distribution"`
	CitationAnalysis CitationStats `json:"citation_analysis"`
	ResearchTrends   []string      `json:"research_trends"`
}

// Compare computes keyword frequencies, the year distribution and
// citation statistics over analyzed papers. It also returns the key
// themes: the most common keywords.
func Compare(papers []PaperAnalysis) (CrossAnalysis, []string) {
	if len(papers) == 0 {
		return CrossAnalysis{
			CommonKeywords:   Counts{},
			YearDistribution: Counts{},
			ResearchTrends:   []string{},
		}, []string{}
	}

	texts := make([]string, len(papers))
	for i, p := range papers {
		texts[i] = corpusText(p)
	}
	words := similarity.Words(strings.Join(texts, " "), KeywordMinLength)
	keywords := mostCommon(tally(words), CommonKeywordLimit)
	if keywords == nil {
		keywords = Counts{}
	}

	var years []string
	for _, p := range papers {
		if p.Year > 0 {
			years = append(years, strconv.Itoa(p.Year))
		}
	}
	yearDist := tally(years)
	if yearDist == nil {
		yearDist = Counts{}
	}

	trends := []string{}
	for _, k := range keywords.Keys() {
		if len(trends) == TrendLimit {
			break
		}
		trends = append(trends, fmt.Sprintf("Focus on '%s'", k))
	}

	themes := keywords.Keys()
	if len(themes) > ThemeLimit {
		themes = themes[:ThemeLimit]
	}

	return CrossAnalysis{
		CommonKeywords:   keywords,
		YearDistribution: yearDist,
		CitationAnalysis: citationStats(papers),
		ResearchTrends:   trends,
	}, themes
}

func citationStats(papers []PaperAnalysis) CitationStats {
	if len(papers) == 0 {
		return CitationStats{}
	}
	stats := CitationStats{Max: papers[0].Citations, Min: papers[0].Citations}
	for _, p := range papers {
		stats.Total += p.Citations
		stats.Max = max(stats.Max, p.Citations)
		stats.Min = min(stats.Min, p.Citations)
	}
	stats.Average = math.Round(float64(stats.Total)/float64(len(papers))*10) / 10
	return stats
}

// corpusText is the text a paper contributes to corpus-level statistics:
// its title followed by every section.
func corpusText(p PaperAnalysis) string {
	return p.Document().Text()
}
