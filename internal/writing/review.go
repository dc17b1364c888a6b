package writing

import "strings"

// QualityRemarks accompanies every quality report.
const QualityRemarks = "Higher score indicates better structure and completeness."

// substantive is the length a draft section needs to count as present.
const substantive = 50

// Quality scores the structure of a draft out of 100.
type Quality struct {
	WordCount int    `json:"word_count"`
	Score     int    `json:"quality_score_out_of_100"`
	Remarks   string `json:"remarks"`
}

// EvaluateQuality awards 20 points each for mentioning an abstract,
// methods, and results, and for passing 250 and 400 words.
func EvaluateQuality(text string) Quality {
	words := len(strings.Fields(text))
	lower := strings.ToLower(text)

	score := 0
	if strings.Contains(lower, "abstract") {
		score += 20
	}
	if strings.Contains(lower, "methods") || strings.Contains(lower, "methodology") {
		score += 20
	}
	if strings.Contains(lower, "results") {
		score += 20
	}
	if words > 250 {
		score += 20
	}
	if words > 400 {
		score += 20
	}
	return Quality{WordCount: words, Score: score, Remarks: QualityRemarks}
}

// DraftSections holds a draft split by heading keywords.
type DraftSections struct {
	Abstract string `json:"Abstract"`
	Methods  string `json:"Methods"`
	Results  string `json:"Results"`
}

// SplitSections assigns each line of a draft to the most recent line
// that mentions abstract, methods or results. Lines before the first
// such line are dropped.
func SplitSections(text string) DraftSections {
	var s DraftSections
	var current *string
	for _, line := range strings.Split(text, "\n") {
		clean := strings.ToLower(strings.TrimSpace(line))
		switch {
		case strings.Contains(clean, "abstract"):
			current = &s.Abstract
			continue
		case strings.Contains(clean, "methods"), strings.Contains(clean, "methodology"):
			current = &s.Methods
			continue
		case strings.Contains(clean, "results"):
			current = &s.Results
			continue
		}
		if current != nil {
			*current += line + "\n"
		}
	}
	return s
}

// Review is a structural summary of a draft.
type Review struct {
	Sections    DraftSections `json:"sections"`
	WordCount   int           `json:"word_count"`
	HasAbstract bool          `json:"has_abstract"`
	HasMethods  bool          `json:"has_methods"`
	HasResults  bool          `json:"has_results"`
	Quality     Quality       `json:"quality"`
}

// ReviewDraft splits a draft and flags which key sections carry
// substantive content.
func ReviewDraft(text string) Review {
	s := SplitSections(text)
	return Review{
		Sections:    s,
		WordCount:   len(strings.Fields(text)),
		HasAbstract: len(strings.TrimSpace(s.Abstract)) > substantive,
		HasMethods:  len(strings.TrimSpace(s.Methods)) > substantive,
		HasResults:  len(strings.TrimSpace(s.Results)) > substantive,
		Quality:     EvaluateQuality(text),
	}
}
