package reference

import (
	"reflect"
	"testing"
)

func TestParseAuthor(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Author
	}{
		{"two words", "Jane Doe", Author{First: "Jane", Last: "Doe"}},
		{"middle name", "John Ronald Tolkien", Author{First: "John Ronald", Last: "Tolkien"}},
		{"single word", "Plato", Author{Last: "Plato"}},
		{"extra whitespace", "  Ada   Lovelace ", Author{First: "Ada", Last: "Lovelace"}},
		{"empty", "", Author{}},
		{"suffix", "Martin Luther King Jr.", Author{First: "Martin Luther", Last: "King Jr."}},
		{"two words ending in suffix-like token", "John III", Author{First: "John", Last: "III"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseAuthor(tt.input); got != tt.want {
				t.Errorf("ParseAuthor(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseAuthors_SkipsBlank(t *testing.T) {
	got := ParseAuthors([]string{"Jane Doe", " ", "Plato"})
	want := []Author{{First: "Jane", Last: "Doe"}, {Last: "Plato"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseAuthors() = %+v, want %+v", got, want)
	}
}

func TestAuthor_Initials(t *testing.T) {
	tests := []struct {
		author Author
		want   string
	}{
		{Author{First: "John Ronald", Last: "Tolkien"}, "J. R."},
		{Author{First: "Émile", Last: "Borel"}, "É."},
		{Author{Last: "Plato"}, ""},
	}
	for _, tt := range tests {
		if got := tt.author.Initials(); got != tt.want {
			t.Errorf("Initials(%+v) = %q, want %q", tt.author, got, tt.want)
		}
	}
}

func TestReference_YearString(t *testing.T) {
	if got := (Reference{Year: 2021}).YearString(); got != "2021" {
		t.Errorf("YearString() = %q, want 2021", got)
	}
	if got := (Reference{}).YearString(); got != "n.d." {
		t.Errorf("YearString() = %q, want n.d.", got)
	}
}

func TestReference_HasAbstract(t *testing.T) {
	tests := []struct {
		abstract string
		want     bool
	}{
		{"We study folding.", true},
		{NoAbstract, false},
		{"   ", false},
	}
	for _, tt := range tests {
		if got := (Reference{Abstract: tt.abstract}).HasAbstract(); got != tt.want {
			t.Errorf("HasAbstract(%q) = %v, want %v", tt.abstract, got, tt.want)
		}
	}
}

func TestReference_AuthorNames(t *testing.T) {
	r := Reference{Authors: []Author{{First: "Jane", Last: "Doe"}, {Last: "Plato"}}}
	want := []string{"Jane Doe", "Plato"}
	if got := r.AuthorNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("AuthorNames() = %v, want %v", got, want)
	}
	if got := r.FirstAuthorLast(); got != "Doe" {
		t.Errorf("FirstAuthorLast() = %q, want Doe", got)
	}
}
