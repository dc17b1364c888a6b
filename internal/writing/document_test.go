package writing

import (
	"strings"
	"testing"
	"time"
)

func TestTopicTitle(t *testing.T) {
	tests := []struct {
		themes []string
		want   string
	}{
		{nil, "Research Topic"},
		{[]string{"graph"}, "Graph"},
		{[]string{"protein", "folding", "structure", "prediction"}, "Protein, Folding, Structure"},
	}
	for _, tt := range tests {
		if got := TopicTitle(tt.themes); got != tt.want {
			t.Errorf("TopicTitle(%v) = %q, want %q", tt.themes, got, tt.want)
		}
	}
}

func TestAssembleParseDocument(t *testing.T) {
	h := Header{
		Topic:    "Graph, Networks",
		Date:     time.Date(2025, time.November, 3, 0, 0, 0, 0, time.UTC),
		Papers:   4,
		Provider: "Google Gemini",
	}
	s := Sections{
		Abstract:          "Abstract body.",
		Introduction:      "Intro body.\n\nSecond paragraph.",
		MethodsComparison: "Methods body.",
		ResultsSynthesis:  "Results body.",
		Discussion:        "Discussion body.",
		Conclusion:        "Conclusion body.",
		References:        "Doe, J. (2020). Paper.",
	}

	md := Assemble(h, s)
	if !strings.HasPrefix(md, Title+"\n\n**Topic:** Graph, Networks  \n\n**Generated:** November 03, 2025  ") {
		t.Errorf("unexpected header:\n%s", md)
	}

	got := ParseDocument(md)
	want := Parsed{
		Topic:        "Graph, Networks",
		Date:         "November 03, 2025",
		PaperCount:   4,
		Model:        "Google Gemini",
		Abstract:     "Abstract body.",
		Introduction: "Intro body.\n\nSecond paragraph.",
		Methods:      "Methods body.",
		Results:      "Results body.",
		Discussion:   "Discussion body.",
		Conclusion:   "Conclusion body.",
		References:   "Doe, J. (2020). Paper.",
	}
	if got != want {
		t.Errorf("ParseDocument() =\n%+v\nwant\n%+v", got, want)
	}
}

func TestAssemble_DefaultProvider(t *testing.T) {
	md := Assemble(Header{}, Sections{})
	if !strings.Contains(md, "**AI Provider:** "+TemplateProvider) {
		t.Errorf("missing template provider:\n%s", md)
	}
}

func TestParseDocument_Partial(t *testing.T) {
	md := "# Revised\n\n## Abstract\n\nTitle: Something\nAbstract:\nShort abstract.\n\n## Extra Notes\n\nnotes"

	got := ParseDocument(md)
	if got.Abstract != "Short abstract." {
		t.Errorf("Abstract = %q", got.Abstract)
	}
	if got.Topic != "" || got.PaperCount != 0 || got.Introduction != "" {
		t.Errorf("missing parts should be empty: %+v", got)
	}
}
