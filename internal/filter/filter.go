// Package filter narrows a paper list by author, year range and venue.
package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/matsen/litsynth/internal/reference"
)

// AuthorQuery is one parsed author filter.
type AuthorQuery struct {
	First string // Prefix of the given names; empty matches any
	Last  string
}

// ParseAuthor parses "Yu", "Timothy Yu" or "Yu, Timothy".
func ParseAuthor(s string) AuthorQuery {
	s = strings.TrimSpace(s)
	if last, first, ok := strings.Cut(s, ","); ok && strings.TrimSpace(last) != "" {
		return AuthorQuery{First: strings.TrimSpace(first), Last: strings.TrimSpace(last)}
	}
	a := reference.ParseAuthor(s)
	return AuthorQuery{First: a.First, Last: a.Last}
}

// Matches reports whether a satisfies the query. Family names compare
// case-insensitively and exactly, so "Yu" does not match "Yujia"; given
// names match by prefix, so "Tim" matches "Timothy C".
func (q AuthorQuery) Matches(a reference.Author) bool {
	if !strings.EqualFold(q.Last, a.Last) {
		return false
	}
	return strings.HasPrefix(strings.ToLower(a.First), strings.ToLower(q.First))
}

// Filter selects papers. Zero fields match everything.
type Filter struct {
	Authors  []AuthorQuery // Every query must match some author
	YearFrom int
	YearTo   int
	Venue    string // Case-insensitive substring
}

// ErrInvalidYear is returned by ParseYears for malformed input.
var ErrInvalidYear = errors.New("invalid year")

// ParseYears parses "2024", "2020:2024", "2020:" or ":2024".
func ParseYears(input string) (from, to int, err error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, 0, nil
	}
	atoi := func(s string) (int, error) {
		if s == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w %q", ErrInvalidYear, s)
		}
		return n, nil
	}

	start, end, isRange := strings.Cut(input, ":")
	if from, err = atoi(start); err != nil {
		return 0, 0, err
	}
	if !isRange {
		return from, from, nil
	}
	if to, err = atoi(end); err != nil {
		return 0, 0, err
	}
	if from > 0 && to > 0 && from > to {
		return 0, 0, fmt.Errorf("%w range %q: start after end", ErrInvalidYear, input)
	}
	return from, to, nil
}

// New builds a filter from raw author strings, a year range and a venue.
func New(authors []string, years, venue string) (Filter, error) {
	f := Filter{Venue: strings.TrimSpace(venue)}
	for _, a := range authors {
		if q := ParseAuthor(a); q.Last != "" {
			f.Authors = append(f.Authors, q)
		}
	}
	var err error
	f.YearFrom, f.YearTo, err = ParseYears(years)
	return f, err
}

// Empty reports whether the filter matches everything.
func (f Filter) Empty() bool {
	return len(f.Authors) == 0 && f.YearFrom == 0 && f.YearTo == 0 && f.Venue == ""
}

// Match reports whether ref passes the filter. Papers without a year
// fail any year bound.
func (f Filter) Match(ref reference.Reference) bool {
	for _, q := range f.Authors {
		found := false
		for _, a := range ref.Authors {
			if q.Matches(a) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if (f.YearFrom > 0 || f.YearTo > 0) && ref.Year == 0 {
		return false
	}
	if f.YearFrom > 0 && ref.Year < f.YearFrom {
		return false
	}
	if f.YearTo > 0 && ref.Year > f.YearTo {
		return false
	}
	if f.Venue != "" && !strings.Contains(strings.ToLower(ref.Venue), strings.ToLower(f.Venue)) {
		return false
	}
	return true
}

// Apply returns the papers that pass the filter, in order.
func (f Filter) Apply(refs []reference.Reference) []reference.Reference {
	if f.Empty() {
		return refs
	}
	out := make([]reference.Reference, 0, len(refs))
	for _, ref := range refs {
		if f.Match(ref) {
			out = append(out, ref)
		}
	}
	return out
}
