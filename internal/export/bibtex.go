// Package export formats references as BibTeX entries and APA 7th
// edition reference lists.
package export

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/matsen/litsynth/internal/reference"
)

var nonKeyChars = regexp.MustCompile(`[^a-z0-9]`)

// ToBibTeX converts a reference to a BibTeX entry under key.
func ToBibTeX(ref reference.Reference, key string) string {
	entryType := determineEntryType(ref)
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@%s{%s,\n", entryType, key))

	// Authors
	if len(ref.Authors) > 0 {
		b.WriteString(fmt.Sprintf("  author = {%s},\n", formatAuthors(ref.Authors)))
	}

	title := ref.Title
	if title == "" {
		title = "Untitled"
	}
	b.WriteString(fmt.Sprintf("  title = {%s},\n", escapeLatex(title)))

	// Venue
	if ref.Venue != "" {
		fieldName := "journal"
		if entryType == "inproceedings" {
			fieldName = "booktitle"
		}
		b.WriteString(fmt.Sprintf("  %s = {%s},\n", fieldName, escapeLatex(ref.Venue)))
	}

	if ref.Year > 0 {
		b.WriteString(fmt.Sprintf("  year = {%d},\n", ref.Year))
	}

	if ref.URL != "" {
		b.WriteString(fmt.Sprintf("  url = {%s},\n", ref.URL))
	}

	b.WriteString("}\n")

	return b.String()
}

// CiteKeys returns one citation key per reference: the first author's
// family name reduced to lowercase letters and digits, followed by the
// year ("nd" when unknown). Repeated keys get a, b, ... suffixes.
func CiteKeys(refs []reference.Reference) []string {
	keys := make([]string, len(refs))
	used := make(map[string]bool, len(refs))
	for i, ref := range refs {
		base := baseKey(ref)
		key := base
		for suffix := 'a'; used[key]; suffix++ {
			key = base + string(suffix)
		}
		used[key] = true
		keys[i] = key
	}
	return keys
}

func baseKey(ref reference.Reference) string {
	last := "unknown"
	if len(ref.Authors) > 0 {
		fields := strings.Fields(ref.Authors[0].FullName())
		if len(fields) > 0 {
			last = fields[len(fields)-1]
		}
	}
	last = nonKeyChars.ReplaceAllString(strings.ToLower(last), "")
	year := "nd"
	if ref.Year > 0 {
		year = strconv.Itoa(ref.Year)
	}
	return last + year
}

// ToBibTeXList converts multiple references to BibTeX, assigning keys
// with CiteKeys.
func ToBibTeXList(refs []reference.Reference) string {
	keys := CiteKeys(refs)
	var entries []string
	for i, ref := range refs {
		entries = append(entries, ToBibTeX(ref, keys[i]))
	}
	return strings.Join(entries, "\n")
}

// determineEntryType returns the BibTeX entry type for a reference.
func determineEntryType(ref reference.Reference) string {
	venue := strings.ToLower(ref.Venue)

	// Preprints
	if strings.Contains(venue, "arxiv") ||
		strings.Contains(venue, "biorxiv") ||
		strings.Contains(venue, "medrxiv") {
		return "article"
	}

	// Conference proceedings
	if strings.Contains(venue, "proceedings") ||
		strings.Contains(venue, "conference") ||
		strings.Contains(venue, "workshop") ||
		strings.Contains(venue, "symposium") {
		return "inproceedings"
	}

	return "article"
}

// formatAuthors formats authors in BibTeX style: "Last, First and Last, First"
func formatAuthors(authors []reference.Author) string {
	var formatted []string
	for _, a := range authors {
		if a.First != "" {
			formatted = append(formatted, fmt.Sprintf("%s, %s", a.Last, a.First))
		} else {
			formatted = append(formatted, a.Last)
		}
	}
	return strings.Join(formatted, " and ")
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	replacer := strings.NewReplacer(
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
