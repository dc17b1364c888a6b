package search

import (
	"strings"

	"golang.org/x/net/html"
)

// CleanAbstract strips HTML and JATS markup (for example <jats:p>) from
// an abstract, unescapes entities, and collapses whitespace. Plain text
// passes through with whitespace collapsed.
func CleanAbstract(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapseSpace(s)
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapseSpace(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if isHiddenTag(string(name)) {
				skip++
			}
			separate(&b, string(name))
		case html.EndTagToken:
			name, _ := z.TagName()
			if isHiddenTag(string(name)) && skip > 0 {
				skip--
			}
			separate(&b, string(name))
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isHiddenTag(name string) bool {
	switch strings.ToLower(name) {
	case "script", "style":
		return true
	}
	return false
}

// inlineTags do not break words: "CO<sub>2</sub>" stays "CO2".
var inlineTags = map[string]bool{
	"i": true, "b": true, "em": true, "strong": true, "sub": true, "sup": true,
	"span": true, "a": true, "u": true, "small": true,
	"jats:italic": true, "jats:bold": true, "jats:sub": true, "jats:sup": true,
	"jats:sc": true, "jats:monospace": true,
}

func separate(b *strings.Builder, name string) {
	if !inlineTags[strings.ToLower(name)] {
		b.WriteByte(' ')
	}
}
