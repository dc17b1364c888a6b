// Package similarity compares documents with TF-IDF vectors and cosine similarity.
package similarity

import (
	"strings"
	"unicode"
)

// MinTokenLength is the shortest token kept by Tokenize.
const MinTokenLength = 3

// stopwords are dropped from every token sequence. Besides English
// function words the set holds words that appear in nearly every
// abstract ("paper", "used", "based") and carry no topical signal.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "of": {}, "in": {}, "to": {}, "a": {}, "is": {},
	"for": {}, "with": {}, "on": {}, "that": {}, "by": {}, "as": {}, "are": {},
	"this": {}, "it": {}, "be": {}, "an": {}, "at": {}, "or": {}, "from": {},
	"we": {}, "our": {}, "can": {}, "was": {}, "has": {}, "have": {}, "not": {},
	"but": {}, "which": {}, "also": {}, "its": {}, "their": {}, "they": {},
	"such": {}, "these": {}, "more": {}, "been": {}, "than": {}, "into": {},
	"paper": {}, "show": {}, "use": {}, "used": {}, "using": {}, "based": {},
	"both": {}, "each": {}, "may": {}, "when": {}, "will": {}, "about": {},
	"between": {}, "while": {}, "other": {}, "how": {}, "new": {}, "two": {},
}

// IsStopword reports whether term is in the stop-word set.
func IsStopword(term string) bool {
	_, ok := stopwords[term]
	return ok
}

// Tokenize lowercases text and returns its alphabetic words of at least
// MinTokenLength letters, minus stop words, in order of occurrence.
// Duplicates are kept.
//
// A word is a maximal run of letters, numbers and underscores. Only
// words made entirely of ASCII letters produce a token, so "covid19",
// "network½" and a precomposed "café" yield nothing while
// "state-of-the-art" yields "state" and "art". Combining marks end a
// word, so a decomposed "café" (e + U+0301) yields "cafe".
func Tokenize(text string) []string {
	return Words(text, MinTokenLength)
}

// Words is like Tokenize with a caller-chosen minimum length. Stop words
// are still removed.
func Words(text string, minLen int) []string {
	lower := strings.ToLower(text)
	var tokens []string

	start := -1
	alpha := true
	flush := func(end int) {
		if start < 0 {
			return
		}
		if alpha && end-start >= minLen {
			w := lower[start:end]
			if !IsStopword(w) {
				tokens = append(tokens, w)
			}
		}
		start = -1
		alpha = true
	}

	for i, r := range lower {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			if r < 'a' || r > 'z' {
				alpha = false
			}
			continue
		}
		flush(i)
	}
	flush(len(lower))

	return tokens
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
