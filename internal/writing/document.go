package writing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Document headings and header labels.
const (
	Title            = "# AI-Generated Research Synthesis Report"
	TemplateProvider = "Template Fallback"
	DateLayout       = "January 02, 2006"
	divider          = "---"
)

// Sections is the content of document_sections.json.
type Sections struct {
	Abstract           string `json:"abstract"`
	Introduction       string `json:"introduction"`
	MethodsComparison  string `json:"methods_comparison"`
	ResultsSynthesis   string `json:"results_synthesis"`
	Discussion         string `json:"discussion"`
	Conclusion         string `json:"conclusion"`
	FutureImplications string `json:"future_implications"`
	References         string `json:"references"`
	BibTeX             string `json:"bibtex"`
	SynthesisReport    string `json:"synthesis_report"`
}

// set stores text under a section name.
func (s *Sections) set(name, text string) {
	switch name {
	case SectionAbstract:
		s.Abstract = text
	case SectionIntroduction:
		s.Introduction = text
	case SectionMethods:
		s.MethodsComparison = text
	case SectionResults:
		s.ResultsSynthesis = text
	case SectionDiscussion:
		s.Discussion = text
	case SectionConclusion, SectionFutureImplications:
		s.Conclusion = text
		s.FutureImplications = text
	case SectionReferences:
		s.References = text
	case SectionBibTeX:
		s.BibTeX = text
	case SectionReport:
		s.SynthesisReport = text
	}
}

// Header is the metadata block at the top of a document.
type Header struct {
	Topic    string
	Date     time.Time
	Papers   int
	Provider string
}

// TopicTitle title-cases the first three key themes.
func TopicTitle(themes []string) string {
	if len(themes) == 0 {
		return "Research Topic"
	}
	return cases.Title(language.Und).String(firstN(themes, 3))
}

// Assemble renders the markdown document.
func Assemble(h Header, s Sections) string {
	provider := h.Provider
	if provider == "" {
		provider = TemplateProvider
	}
	parts := []string{
		Title,
		"**Topic:** " + h.Topic + "  ",
		"**Generated:** " + h.Date.Format(DateLayout) + "  ",
		fmt.Sprintf("**Papers Reviewed:** %d  ", h.Papers),
		"**AI Provider:** " + provider,
		divider,

		"## Abstract",
		s.Abstract,
		divider,

		"## 1. Introduction",
		s.Introduction,

		"## 2. Methodological Comparison",
		s.MethodsComparison,

		"## 3. Results Synthesis",
		s.ResultsSynthesis,

		"## 4. Discussion",
		s.Discussion,

		"## 5. Conclusion & Future Implications",
		s.Conclusion,
		divider,

		"## References",
		s.References,
	}
	return strings.Join(parts, "\n\n")
}

// Parsed holds the header fields and section bodies recovered from a
// synthesis document.
type Parsed struct {
	Topic        string `json:"topic"`
	Date         string `json:"date"`
	PaperCount   int    `json:"paper_count"`
	Model        string `json:"model"`
	Abstract     string `json:"abstract"`
	Introduction string `json:"introduction"`
	Methods      string `json:"methods"`
	Results      string `json:"results"`
	Discussion   string `json:"discussion"`
	Conclusion   string `json:"conclusion"`
	References   string `json:"references"`
}

var (
	topicLine    = regexp.MustCompile(`\*\*Topic:\*\*[ \t]*(.+)`)
	dateLine     = regexp.MustCompile(`\*\*Generated:\*\*[ \t]*(.+)`)
	papersLine   = regexp.MustCompile(`\*\*Papers Reviewed:\*\*[ \t]*(\d+)`)
	providerLine = regexp.MustCompile(`\*\*AI Provider:\*\*[ \t]*(.+)`)

	abstractHeading     = regexp.MustCompile(`(?i)## Abstract[^\n]*\n`)
	introHeading        = regexp.MustCompile(`(?i)## 1\. Introduction[^\n]*\n`)
	methodsHeading      = regexp.MustCompile(`(?i)## 2\. Methodological Comparison[^\n]*\n`)
	resultsHeading      = regexp.MustCompile(`(?i)## 3\. Results Synthesis[^\n]*\n`)
	discussionHeading   = regexp.MustCompile(`(?i)## 4\. Discussion[^\n]*\n`)
	conclusionHeading   = regexp.MustCompile(`(?i)## 5\. Conclusion[^\n]*\n`)
	referencesHeading   = regexp.MustCompile(`(?i)## References[^\n]*\n`)
	abstractTitleLabel  = regexp.MustCompile(`^Title:[^\n]*\n`)
	abstractHeaderLabel = regexp.MustCompile(`^Abstract:[ \t]*\n`)
)

// ParseDocument recovers the header and sections of a document built by
// Assemble, tolerating revisions that moved or dropped parts.
func ParseDocument(md string) Parsed {
	p := Parsed{
		Topic:        field(topicLine, md),
		Date:         field(dateLine, md),
		Model:        field(providerLine, md),
		Introduction: body(introHeading, md),
		Methods:      body(methodsHeading, md),
		Results:      body(resultsHeading, md),
		Discussion:   body(discussionHeading, md),
		Conclusion:   body(conclusionHeading, md),
		References:   body(referencesHeading, md),
	}
	p.PaperCount, _ = strconv.Atoi(field(papersLine, md))

	abstract := body(abstractHeading, md)
	abstract = strings.TrimSpace(abstractTitleLabel.ReplaceAllString(abstract, ""))
	p.Abstract = strings.TrimSpace(abstractHeaderLabel.ReplaceAllString(abstract, ""))
	return p
}

func field(re *regexp.Regexp, md string) string {
	m := re.FindStringSubmatch(md)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// body returns the text after heading up to the next level-two heading.
func body(heading *regexp.Regexp, md string) string {
	loc := heading.FindStringIndex(md)
	if loc == nil {
		return ""
	}
	rest := md[loc[1]:]
	if i := strings.Index(rest, "\n## "); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.TrimSpace(rest)
	return strings.TrimSpace(strings.TrimSuffix(rest, divider))
}
