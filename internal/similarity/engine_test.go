package similarity

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"testing"
)

func doc(id int, title string, sections ...string) Document {
	d := Document{ID: id, Title: title}
	names := []string{"abstract", "background", "objective", "methods", "results", "conclusion"}
	for i, text := range sections {
		d.Sections = append(d.Sections, Section{Name: names[i%len(names)], Text: text})
	}
	return d
}

func TestDocument_Text(t *testing.T) {
	d := doc(0, "Title", "first part", "", "second part")
	want := "Title first part  second part"
	if got := d.Text(); got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestCompare_SharedAndDisjointVocabulary(t *testing.T) {
	docs := []Document{
		doc(0, "Neural network training", "neural network training"),
		doc(1, "Network training", "neural network training network"),
		doc(2, "Quantum chromodynamics", "lattice quantum chromodynamics simulation"),
	}

	var e Engine
	res := e.Compare(docs)

	if !res.Sufficient {
		t.Fatal("Sufficient = false, want true")
	}
	if res.Matrix[0][1] < 0.9 {
		t.Errorf("matrix[A][B] = %v, want close to 1", res.Matrix[0][1])
	}
	if res.Matrix[0][2] != 0 || res.Matrix[1][2] != 0 {
		t.Errorf("matrix[A][C] = %v, matrix[B][C] = %v, want 0", res.Matrix[0][2], res.Matrix[1][2])
	}
	top := res.Pairs[0]
	if top.PaperAIdx != 0 || top.PaperBIdx != 1 {
		t.Errorf("top pair = (%d, %d), want (0, 1)", top.PaperAIdx, top.PaperBIdx)
	}
	if top.PaperATitle != "Neural network training" || top.PaperBTitle != "Network training" {
		t.Errorf("top pair titles = %q, %q", top.PaperATitle, top.PaperBTitle)
	}
}

func TestCompare_IdenticalDocuments(t *testing.T) {
	docs := []Document{
		doc(0, "Protein folding", "Deep learning predicts protein structure."),
		doc(1, "Protein folding", "Deep learning predicts protein structure."),
	}

	var e Engine
	res := e.Compare(docs)

	if res.Matrix[0][1] != 1.0 {
		t.Errorf("matrix[0][1] = %v, want 1.0", res.Matrix[0][1])
	}
	if len(res.Pairs) != 1 || res.Pairs[0].Similarity != 1.0 {
		t.Errorf("pairs = %+v, want one pair with similarity 1.0", res.Pairs)
	}
}

func TestCompare_InsufficientData(t *testing.T) {
	tests := []struct {
		name string
		docs []Document
	}{
		{"no documents", nil},
		{"single document", []Document{doc(0, "Alone", "only one paper in the corpus")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Engine
			res := e.Compare(tt.docs)

			if res.Sufficient {
				t.Error("Sufficient = true, want false")
			}
			if len(res.Matrix) != 0 || len(res.Pairs) != 0 || len(res.TopTerms) != 0 {
				t.Errorf("want empty result, got %+v", res)
			}
			if len(res.PaperTitles) != len(tt.docs) {
				t.Errorf("PaperTitles = %v, want %d titles", res.PaperTitles, len(tt.docs))
			}

			data, err := json.Marshal(res)
			if err != nil {
				t.Fatal(err)
			}
			var shape map[string]json.RawMessage
			if err := json.Unmarshal(data, &shape); err != nil {
				t.Fatal(err)
			}
			if string(shape["matrix"]) != "[]" || string(shape["pairs"]) != "[]" {
				t.Errorf("empty result should serialize as arrays, got %s", data)
			}
		})
	}
}

func TestCompare_EmptyDocument(t *testing.T) {
	docs := []Document{
		doc(0, "On AI", "", "", "", "", "", ""),
		doc(1, "Gene regulation", "Transcription factors regulate gene expression."),
		doc(2, "Gene networks", "Regulatory networks control gene expression."),
	}

	var e Engine
	res := e.Compare(docs)

	if n := len(res.TopTerms[0].TopTerms); n != 0 {
		t.Errorf("empty document has %d top terms, want 0", n)
	}
	for j := 1; j < len(docs); j++ {
		if res.Matrix[0][j] != 0 {
			t.Errorf("matrix[0][%d] = %v, want 0", j, res.Matrix[0][j])
		}
	}
	if res.Matrix[0][0] != 1.0 {
		t.Errorf("matrix[0][0] = %v, want 1.0", res.Matrix[0][0])
	}
}

func TestCompare_MatrixInvariants(t *testing.T) {
	docs := []Document{
		doc(0, "Graph neural networks", "Message passing networks learn molecular graph representations."),
		doc(1, "Molecular property prediction", "Graph networks predict molecular properties with message passing."),
		doc(2, "Protein language models", "Language models trained on protein sequences capture structure."),
		doc(3, "Sequence models", "Recurrent models process long sequences of tokens."),
		doc(4, "Vaccine design", "Epitope prediction guides vaccine design for influenza."),
	}

	var e Engine
	res := e.Compare(docs)
	n := len(docs)

	if len(res.Matrix) != n {
		t.Fatalf("matrix has %d rows, want %d", len(res.Matrix), n)
	}
	for i := 0; i < n; i++ {
		if res.Matrix[i][i] != 1.0 {
			t.Errorf("matrix[%d][%d] = %v, want 1.0", i, i, res.Matrix[i][i])
		}
		for j := 0; j < n; j++ {
			if res.Matrix[i][j] != res.Matrix[j][i] {
				t.Errorf("matrix not symmetric at (%d, %d)", i, j)
			}
			if i != j && (res.Matrix[i][j] < 0 || res.Matrix[i][j] > 1) {
				t.Errorf("matrix[%d][%d] = %v outside [0, 1]", i, j, res.Matrix[i][j])
			}
			if r := Round(res.Matrix[i][j], ScorePlaces); r != res.Matrix[i][j] {
				t.Errorf("matrix[%d][%d] = %v not rounded to %d places", i, j, res.Matrix[i][j], ScorePlaces)
			}
		}
	}

	if want := n * (n - 1) / 2; len(res.Pairs) != want {
		t.Errorf("len(Pairs) = %d, want %d", len(res.Pairs), want)
	}
	if !sort.SliceIsSorted(res.Pairs, func(a, b int) bool {
		return res.Pairs[a].Similarity > res.Pairs[b].Similarity
	}) {
		t.Error("pairs not sorted by decreasing similarity")
	}
	for _, p := range res.Pairs {
		if p.PaperAIdx >= p.PaperBIdx {
			t.Errorf("pair (%d, %d) not ordered i < j", p.PaperAIdx, p.PaperBIdx)
		}
		if p.Similarity != res.Matrix[p.PaperAIdx][p.PaperBIdx] {
			t.Errorf("pair similarity %v differs from matrix %v", p.Similarity, res.Matrix[p.PaperAIdx][p.PaperBIdx])
		}
	}
	if res.VocabularySize == 0 {
		t.Error("VocabularySize = 0")
	}
}

func TestCompare_TiedPairsKeepInsertionOrder(t *testing.T) {
	docs := []Document{
		doc(0, "Alpha", "alpha"),
		doc(1, "Beta", "beta"),
		doc(2, "Gamma", "gamma"),
		doc(3, "Delta", "delta"),
	}

	var e Engine
	res := e.Compare(docs)

	var got [][2]int
	for _, p := range res.Pairs {
		got = append(got, [2]int{p.PaperAIdx, p.PaperBIdx})
	}
	want := [][2]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("pair order = %v, want %v", got, want)
	}
}

func TestCompare_TopTerms(t *testing.T) {
	var many string
	for i := 0; i < 12; i++ {
		many += fmt.Sprintf("term%c%c ", 'a'+rune(i), 'a'+rune(i))
	}
	docs := []Document{
		doc(0, "", many),
		doc(1, "", "alpha beta gamma"),
		doc(2, "", "delta"),
	}

	var e Engine
	res := e.Compare(docs)

	if n := len(res.TopTerms[0].TopTerms); n != TopTermsLimit {
		t.Errorf("doc 0 has %d top terms, want %d", n, TopTermsLimit)
	}

	terms := res.TopTerms[1].TopTerms
	var names []string
	for _, ts := range terms {
		names = append(names, ts.Term)
	}
	if want := []string{"alpha", "beta", "gamma"}; !reflect.DeepEqual(names, want) {
		t.Errorf("tied terms = %v, want %v", names, want)
	}

	// tf = 1/3, idf = ln(4/2) + 1
	want := Round((math.Log(2)+1)/3, ScorePlaces)
	for _, ts := range terms {
		if ts.Score != want {
			t.Errorf("score(%s) = %v, want %v", ts.Term, ts.Score, want)
		}
	}
	if res.TopTerms[2].PaperIdx != 2 {
		t.Errorf("PaperIdx = %d, want 2", res.TopTerms[2].PaperIdx)
	}
}

func TestTopTerms_SortedByWeight(t *testing.T) {
	v := vec("low", 0.1, "high", 0.9, "mid", 0.5, "mid2", 0.5)
	got := TopTerms(v, 3)
	want := []TermScore{{"high", 0.9}, {"mid", 0.5}, {"mid2", 0.5}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopTerms() = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(v.Terms(), []string{"low", "high", "mid", "mid2"}) {
		t.Error("TopTerms modified the vector")
	}
}

func TestCompare_Deterministic(t *testing.T) {
	docs := []Document{
		doc(0, "CRISPR screens", "Genome-wide CRISPR screens identify essential genes."),
		doc(1, "Essential genes", "Essential genes are identified with knockout screens."),
		doc(2, "Single cell", "Single cell sequencing reveals heterogeneity of tumours."),
	}

	serial := Engine{Workers: 1}
	parallel := Engine{Workers: 8}
	a := serial.Compare(docs)
	b := parallel.Compare(docs)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("results differ between worker counts:\n%+v\n%+v", a, b)
	}
}

func TestResult_JSONShape(t *testing.T) {
	var e Engine
	res := e.Compare([]Document{
		doc(0, "First", "sequence alignment"),
		doc(1, "Second", "sequence assembly"),
	})

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(data, &shape); err != nil {
		t.Fatal(err)
	}

	var keys []string
	for k := range shape {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	want := []string{"matrix", "pairs", "paper_titles", "top_terms"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
}
