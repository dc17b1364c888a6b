package reference

import "strings"

// Author represents a paper author.
type Author struct {
	First string `json:"first,omitempty"` // Given name(s)
	Last  string `json:"last"`            // Family name
}

// Common name suffixes kept with the family name.
var nameSuffixes = map[string]bool{
	"jr":   true,
	"jr.":  true,
	"sr":   true,
	"sr.":  true,
	"ii":   true,
	"iii":  true,
	"iv":   true,
	"phd":  true,
	"ph.d": true,
	"md":   true,
}

// ParseAuthor splits a display name into given and family names. The
// last whitespace-separated word is the family name; a single word is
// treated as a family name. A trailing suffix (Jr, III, PhD) stays with
// the family name.
//
// Multi-part surnames (von Neumann) split incorrectly.
func ParseAuthor(name string) Author {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return Author{}
	case 1:
		return Author{Last: parts[0]}
	}

	n := len(parts)
	if nameSuffixes[strings.ToLower(parts[n-1])] && n > 2 {
		return Author{
			First: strings.Join(parts[:n-2], " "),
			Last:  parts[n-2] + " " + parts[n-1],
		}
	}
	return Author{
		First: strings.Join(parts[:n-1], " "),
		Last:  parts[n-1],
	}
}

// ParseAuthors applies ParseAuthor to each name, skipping blank names.
func ParseAuthors(names []string) []Author {
	authors := make([]Author, 0, len(names))
	for _, n := range names {
		a := ParseAuthor(n)
		if a.Last == "" {
			continue
		}
		authors = append(authors, a)
	}
	return authors
}

// FullName returns "First Last", or just the family name.
func (a Author) FullName() string {
	if a.First == "" {
		return a.Last
	}
	return a.First + " " + a.Last
}

// Initials returns the initials of the given names in APA form, for
// example "J. R." for "John Ronald".
func (a Author) Initials() string {
	parts := strings.Fields(a.First)
	initials := make([]string, 0, len(parts))
	for _, p := range parts {
		r := []rune(p)
		initials = append(initials, string(r[0])+".")
	}
	return strings.Join(initials, " ")
}
