package filter

import (
	"errors"
	"testing"

	"github.com/matsen/litsynth/internal/reference"
)

func TestParseAuthor(t *testing.T) {
	tests := []struct {
		input string
		want  AuthorQuery
	}{
		{"Yu", AuthorQuery{Last: "Yu"}},
		{"Timothy Yu", AuthorQuery{First: "Timothy", Last: "Yu"}},
		{"Timothy C Yu", AuthorQuery{First: "Timothy C", Last: "Yu"}},
		{"Yu, Timothy", AuthorQuery{First: "Timothy", Last: "Yu"}},
		{"  Yu ,  Tim ", AuthorQuery{First: "Tim", Last: "Yu"}},
		{"", AuthorQuery{}},
	}
	for _, tt := range tests {
		if got := ParseAuthor(tt.input); got != tt.want {
			t.Errorf("ParseAuthor(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
}

func TestAuthorQuery_Matches(t *testing.T) {
	timothy := reference.Author{First: "Timothy C", Last: "Yu"}
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"last name only", "Yu", true},
		{"case insensitive", "yu", true},
		{"first name prefix", "Tim Yu", true},
		{"comma format", "Yu, Timothy", true},
		{"last name is not a prefix match", "Y", false},
		{"wrong first name", "Tom Yu", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseAuthor(tt.query).Matches(timothy); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
	if (ParseAuthor("Yu")).Matches(reference.Author{First: "Yujia", Last: "Li"}) {
		t.Error("Yu matched Yujia Li")
	}
}

func TestParseYears(t *testing.T) {
	tests := []struct {
		input    string
		from, to int
		wantErr  bool
	}{
		{"", 0, 0, false},
		{"2024", 2024, 2024, false},
		{"2020:2024", 2020, 2024, false},
		{"2020:", 2020, 0, false},
		{":2020", 0, 2020, false},
		{"20x0", 0, 0, true},
		{"2020:abc", 0, 0, true},
		{"2024:2020", 0, 0, true},
	}
	for _, tt := range tests {
		from, to, err := ParseYears(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseYears(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err != nil {
			if !errors.Is(err, ErrInvalidYear) {
				t.Errorf("ParseYears(%q) error = %v, want ErrInvalidYear", tt.input, err)
			}
			continue
		}
		if from != tt.from || to != tt.to {
			t.Errorf("ParseYears(%q) = %d, %d, want %d, %d", tt.input, from, to, tt.from, tt.to)
		}
	}
}

func TestFilter_Apply(t *testing.T) {
	refs := []reference.Reference{
		{ID: "a", Year: 2019, Venue: "Nature", Authors: []reference.Author{{First: "Jesse", Last: "Bloom"}}},
		{ID: "b", Year: 2022, Venue: "eLife", Authors: []reference.Author{{First: "Timothy", Last: "Yu"}, {First: "Jesse", Last: "Bloom"}}},
		{ID: "c", Venue: "arXiv", Authors: []reference.Author{{First: "Timothy", Last: "Yu"}}},
	}

	tests := []struct {
		name    string
		authors []string
		years   string
		venue   string
		want    []string
	}{
		{"no filter", nil, "", "", []string{"a", "b", "c"}},
		{"one author", []string{"Bloom"}, "", "", []string{"a", "b"}},
		{"authors AND", []string{"Yu", "Bloom"}, "", "", []string{"b"}},
		{"year from excludes undated", nil, "2020:", "", []string{"b"}},
		{"exact year", nil, "2019", "", []string{"a"}},
		{"venue substring", nil, "", "LIFE", []string{"b"}},
		{"combined", []string{"Tim Yu"}, ":2023", "", []string{"b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.authors, tt.years, tt.venue)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			got := f.Apply(refs)
			if len(got) != len(tt.want) {
				t.Fatalf("Apply() returned %d papers, want %v", len(got), tt.want)
			}
			for i, ref := range got {
				if ref.ID != tt.want[i] {
					t.Errorf("Apply()[%d] = %s, want %s", i, ref.ID, tt.want[i])
				}
			}
		})
	}
}
