package analysis

import (
	"regexp"
	"strings"
)

const (
	// MaxFindings caps the key findings reported per paper.
	MaxFindings = 5
	// MaxApproaches caps the methodology sentences reported per paper.
	MaxApproaches = 5

	// NoFindings is reported when a paper has no usable text.
	NoFindings = "No specific findings identified."
)

var (
	percentPattern = regexp.MustCompile(`\d+\.?\d*\s*%`)
	numberPattern  = regexp.MustCompile(`\b\d+\.?\d+\b`)
)

// KeyFindings picks sentences that report results: those with a finding
// phrase, or with a percentage and a number. Without any, the last two
// sentences are used.
func KeyFindings(text string) []string {
	sentences := SplitSentences(text)

	var findings []string
	for _, sent := range sentences {
		lower := strings.ToLower(sent)
		metric := percentPattern.MatchString(sent) && numberPattern.MatchString(sent)
		if metric || containsAny(lower, findingPhrases) {
			findings = append(findings, sent)
		}
	}

	if len(findings) == 0 {
		if len(sentences) >= 2 {
			findings = sentences[len(sentences)-2:]
		} else {
			findings = sentences
		}
	}
	if len(findings) == 0 {
		return []string{NoFindings}
	}
	if len(findings) > MaxFindings {
		findings = findings[:MaxFindings]
	}
	return findings
}

// Methodology lists the sentences that describe how the work was done.
type Methodology struct {
	Approaches []string `json:"approaches"`
}

// ExtractMethodology returns up to MaxApproaches sentences of text that
// mention a method phrase.
func ExtractMethodology(text string) Methodology {
	approaches := []string{}
	for _, sent := range SplitSentences(text) {
		if containsAny(strings.ToLower(sent), methodPhrases) {
			approaches = append(approaches, sent)
			if len(approaches) == MaxApproaches {
				break
			}
		}
	}
	return Methodology{Approaches: approaches}
}
