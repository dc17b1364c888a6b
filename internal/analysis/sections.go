// Package analysis derives per-paper features (sections, key findings,
// methodology sentences) and cross-paper statistics, and runs the
// similarity engine over the corpus.
package analysis

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/matsen/litsynth/internal/similarity"
)

// Section labels in document order.
const (
	LabelAbstract   = "abstract"
	LabelBackground = "background"
	LabelObjective  = "objective"
	LabelMethods    = "methods"
	LabelResults    = "results"
	LabelConclusion = "conclusion"
)

// Labels lists every section label in document order.
var Labels = []string{LabelAbstract, LabelBackground, LabelObjective, LabelMethods, LabelResults, LabelConclusion}

// MinSectionLength is the length a section must exceed to be valid.
const MinSectionLength = 20

var (
	backgroundPattern = regexp.MustCompile(`\b(introduction|background)\b`)

	objectiveWords = []string{"objective", "aim", "goal", "propose", "motivation"}
	resultWords    = []string{"result", "show", "demonstrate", "achieve", "outperform", "evaluate"}

	methodPhrases = []string{
		"proposed", "introduced", "method", "algorithm", "framework", "architecture",
		"approach", "model", "technique", "system", "pipeline", "trained", "fine-tuned",
		"evaluated", "implemented", "designed",
	}
	conclusionPhrases = []string{
		"conclude", "conclusion", "summary", "future work", "in summary",
		"in conclusion", "we have shown", "this paper presents", "overall",
	}
	findingPhrases = []string{
		"outperformed", "achieved", "accuracy", "efficiency", "reduced", "improved",
		"demonstrated", "showed", "results indicate", "we found", "our approach",
		"significantly", "state-of-the-art", "benchmark", "performance",
	}
)

// Sections holds the text assigned to each label. Every label is always
// present; unmatched labels are empty strings.
type Sections struct {
	Abstract   string `json:"abstract"`
	Background string `json:"background"`
	Objective  string `json:"objective"`
	Methods    string `json:"methods"`
	Results    string `json:"results"`
	Conclusion string `json:"conclusion"`
}

// Get returns the text of label, or "" for an unknown label.
func (s *Sections) Get(label string) string {
	if p := s.field(label); p != nil {
		return *p
	}
	return ""
}

func (s *Sections) field(label string) *string {
	switch label {
	case LabelAbstract:
		return &s.Abstract
	case LabelBackground:
		return &s.Background
	case LabelObjective:
		return &s.Objective
	case LabelMethods:
		return &s.Methods
	case LabelResults:
		return &s.Results
	case LabelConclusion:
		return &s.Conclusion
	}
	return nil
}

// List returns the sections in label order, empty ones included.
func (s Sections) List() []similarity.Section {
	out := make([]similarity.Section, len(Labels))
	for i, l := range Labels {
		out[i] = similarity.Section{Name: l, Text: s.Get(l)}
	}
	return out
}

// Validate reports, per label, whether the section has meaningful content.
func (s Sections) Validate() map[string]bool {
	v := make(map[string]bool, len(Labels))
	for _, l := range Labels {
		v[l] = len(s.Get(l)) > MinSectionLength
	}
	return v
}

// SplitSentences splits text after '.', '!' or '?' followed by
// whitespace. Sentences are trimmed and empty ones dropped.
func SplitSentences(text string) []string {
	var out []string
	emit := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	start := 0
	var prev rune
	for i, r := range text {
		if unicode.IsSpace(r) && (prev == '.' || prev == '!' || prev == '?') {
			emit(text[start:i])
			start = i
		}
		prev = r
	}
	emit(text[start:])
	return out
}

// ExtractSections assigns each sentence of text to a section. A sentence
// mentioning a section keyword switches the current section; text before
// any switch belongs to the abstract.
func ExtractSections(text string) Sections {
	var parts [6]strings.Builder
	current := 0

	for _, sent := range SplitSentences(text) {
		lower := strings.ToLower(sent)
		switch {
		case backgroundPattern.MatchString(lower):
			current = 1
		case containsAny(lower, objectiveWords):
			current = 2
		case containsAny(lower, methodPhrases):
			current = 3
		case containsAny(lower, resultWords):
			current = 4
		case containsAny(lower, conclusionPhrases):
			current = 5
		}
		parts[current].WriteString(sent)
		parts[current].WriteByte(' ')
	}

	var s Sections
	for i, l := range Labels {
		*s.field(l) = strings.TrimSpace(parts[i].String())
	}
	return s
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
