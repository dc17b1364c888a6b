package export

import (
	"sort"
	"strings"

	"github.com/matsen/litsynth/internal/reference"
)

// UnknownAuthor stands in for a reference without authors.
const UnknownAuthor = "Unknown Author"

// maxListedAuthors is the APA limit before the author list is elided.
const maxListedAuthors = 20

// APAAuthor formats one author as "Last, F. M.".
func APAAuthor(a reference.Author) string {
	if a.First == "" {
		return a.Last
	}
	return a.Last + ", " + a.Initials()
}

// APAAuthors joins authors following APA 7th edition: up to 20 authors
// with "&" before the last, otherwise the first 19, an ellipsis and the
// last author.
func APAAuthors(authors []reference.Author) string {
	var formatted []string
	for _, a := range authors {
		if s := APAAuthor(a); s != "" {
			formatted = append(formatted, s)
		}
	}
	n := len(formatted)
	switch {
	case n == 0:
		return UnknownAuthor
	case n == 1:
		return formatted[0]
	case n <= maxListedAuthors:
		return strings.Join(formatted[:n-1], ", ") + ", & " + formatted[n-1]
	default:
		return strings.Join(formatted[:maxListedAuthors-1], ", ") + ", ... " + formatted[n-1]
	}
}

// ToAPA formats a reference as "Authors. (Year). Title. *Venue*. URL".
func ToAPA(ref reference.Reference) string {
	title := ref.Title
	if title == "" {
		title = "Untitled"
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(APAAuthors(ref.Authors), "."))
	b.WriteString(". (" + ref.YearString() + "). " + title + ".")
	if ref.Venue != "" {
		b.WriteString(" *" + ref.Venue + "*.")
	}
	if ref.URL != "" {
		b.WriteString(" " + ref.URL)
	}
	return b.String()
}

// ToAPAList formats refs sorted by the first author's family name,
// case-insensitively, with entries separated by blank lines.
func ToAPAList(refs []reference.Reference) string {
	sorted := make([]reference.Reference, len(refs))
	copy(sorted, refs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sortName(sorted[i]) < sortName(sorted[j])
	})
	entries := make([]string, len(sorted))
	for i, ref := range sorted {
		entries[i] = ToAPA(ref)
	}
	return strings.Join(entries, "\n\n")
}

func sortName(ref reference.Reference) string {
	if len(ref.Authors) == 0 {
		return "unknown"
	}
	return strings.ToLower(ref.Authors[0].Last)
}
