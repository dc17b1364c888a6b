package export

import (
	"fmt"
	"strings"
	"testing"

	"github.com/matsen/litsynth/internal/reference"
)

func authors(n int) []reference.Author {
	out := make([]reference.Author, n)
	for i := range out {
		out[i] = reference.Author{First: "Ann", Last: fmt.Sprintf("A%02d", i+1)}
	}
	return out
}

func TestAPAAuthors(t *testing.T) {
	tests := []struct {
		name    string
		authors []reference.Author
		want    string
	}{
		{"none", nil, UnknownAuthor},
		{"one", []reference.Author{{First: "John Ronald", Last: "Tolkien"}}, "Tolkien, J. R."},
		{"single name", []reference.Author{{Last: "Plato"}}, "Plato"},
		{
			"two",
			[]reference.Author{{First: "Jane", Last: "Doe"}, {First: "John", Last: "Smith"}},
			"Doe, J., & Smith, J.",
		},
		{
			"three",
			[]reference.Author{{First: "Jane", Last: "Doe"}, {First: "John", Last: "Smith"}, {Last: "WHO"}},
			"Doe, J., Smith, J., & WHO",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := APAAuthors(tt.authors); got != tt.want {
				t.Errorf("APAAuthors() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPAAuthors_Many(t *testing.T) {
	twenty := APAAuthors(authors(20))
	if !strings.HasSuffix(twenty, ", & A20, A.") || strings.Contains(twenty, "...") {
		t.Errorf("APAAuthors(20) = %q", twenty)
	}

	got := APAAuthors(authors(25))
	if !strings.Contains(got, "A19, A., ... A25, A.") {
		t.Errorf("APAAuthors(25) = %q, want first 19, ellipsis, last", got)
	}
	if strings.Contains(got, "A20") {
		t.Errorf("APAAuthors(25) = %q, should omit the 20th author", got)
	}
}

func TestToAPA(t *testing.T) {
	ref := reference.Reference{
		Title:   "Attention Is All You Need",
		Authors: []reference.Author{{First: "Ashish", Last: "Vaswani"}, {First: "Noam", Last: "Shazeer"}},
		Year:    2017,
		Venue:   "NeurIPS",
		URL:     "https://example.org/attn",
	}
	want := "Vaswani, A., & Shazeer, N. (2017). Attention Is All You Need. *NeurIPS*. https://example.org/attn"
	if got := ToAPA(ref); got != want {
		t.Errorf("ToAPA() =\n%q\nwant\n%q", got, want)
	}

	minimal := ToAPA(reference.Reference{})
	if minimal != "Unknown Author. (n.d.). Untitled." {
		t.Errorf("ToAPA(empty) = %q", minimal)
	}
}

func TestToAPAList_SortedStable(t *testing.T) {
	refs := []reference.Reference{
		{Title: "Zeta", Authors: []reference.Author{{First: "Z", Last: "zimmer"}}},
		{Title: "First Doe", Authors: []reference.Author{{First: "J", Last: "Doe"}}},
		{Title: "Second Doe", Authors: []reference.Author{{First: "A", Last: "doe"}}},
		{Title: "Alpha", Authors: []reference.Author{{First: "B", Last: "Adams"}}},
	}

	got := strings.Split(ToAPAList(refs), "\n\n")

	wantTitles := []string{"Alpha", "First Doe", "Second Doe", "Zeta"}
	if len(got) != len(wantTitles) {
		t.Fatalf("ToAPAList() gave %d entries, want %d", len(got), len(wantTitles))
	}
	for i, title := range wantTitles {
		if !strings.Contains(got[i], title+".") {
			t.Errorf("entry %d = %q, want title %q", i, got[i], title)
		}
	}
	if refs[0].Title != "Zeta" {
		t.Error("ToAPAList() reordered its input")
	}
}
