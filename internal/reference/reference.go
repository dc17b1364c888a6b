// Package reference defines the paper record shared by search, analysis and writing.
package reference

import (
	"strconv"
	"strings"
)

// Source identifiers for where a reference was found.
const (
	SourceSemanticScholar = "semantic_scholar"
	SourceArxiv           = "arxiv"
)

// Reference is one paper returned by a bibliographic search.
type Reference struct {
	ID       string   `json:"id"` // Source identifier (S2 paperId or arXiv id URL)
	Title    string   `json:"title"`
	Authors  []Author `json:"authors"`
	Year     int      `json:"year,omitempty"` // 0 if unknown
	Abstract string   `json:"abstract"`
	Venue    string   `json:"venue"`

	PublicationDate string `json:"publication_date,omitempty"` // As reported by the source, usually YYYY-MM-DD
	Citations       int    `json:"citations"`

	URL    string `json:"url,omitempty"`
	PDFURL string `json:"pdf,omitempty"` // Open-access PDF link

	Source string `json:"source"`          // semantic_scholar, arxiv
	Topic  string `json:"topic,omitempty"` // Search topic that produced the reference

	LocalPDF string `json:"local_pdf,omitempty"` // Downloaded PDF path
}

// YearString returns the year, or "n.d." when it is unknown.
func (r Reference) YearString() string {
	if r.Year <= 0 {
		return "n.d."
	}
	return strconv.Itoa(r.Year)
}

// AuthorNames returns the full names of all authors.
func (r Reference) AuthorNames() []string {
	names := make([]string, len(r.Authors))
	for i, a := range r.Authors {
		names[i] = a.FullName()
	}
	return names
}

// FirstAuthorLast returns the family name of the first author, or "" if
// there are no authors.
func (r Reference) FirstAuthorLast() string {
	if len(r.Authors) == 0 {
		return ""
	}
	return r.Authors[0].Last
}

// HasAbstract reports whether the reference carries a real abstract.
func (r Reference) HasAbstract() bool {
	a := strings.TrimSpace(r.Abstract)
	return a != "" && a != NoAbstract
}

// NoAbstract is stored when a source returns no abstract.
const NoAbstract = "No abstract"
