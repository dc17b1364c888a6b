package similarity

import (
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	// MinDocuments is the smallest corpus for which similarity is computed.
	MinDocuments = 2

	// TopTermsLimit is the number of terms reported per document.
	TopTermsLimit = 10

	// ScorePlaces is the number of decimal places kept in reported scores.
	ScorePlaces = 4
)

// Section is one named block of a document's text.
type Section struct {
	Name string
	Text string
}

// Document is a unit of comparison. Sections are concatenated in order
// after the title, so callers control the resulting token order.
type Document struct {
	ID       int
	Title    string
	Sections []Section
}

// Text returns the title followed by every section, space separated.
func (d Document) Text() string {
	parts := make([]string, len(d.Sections))
	for i, s := range d.Sections {
		parts[i] = s.Text
	}
	return d.Title + " " + strings.Join(parts, " ")
}

// Pair is the similarity of two documents, identified by index.
type Pair struct {
	PaperAIdx   int     `json:"paper_a_idx"`
	PaperBIdx   int     `json:"paper_b_idx"`
	PaperATitle string  `json:"paper_a_title"`
	PaperBTitle string  `json:"paper_b_title"`
	Similarity  float64 `json:"similarity"`
}

// TermScore is one weighted term.
type TermScore struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// DocumentTerms lists the highest-weighted terms of one document.
type DocumentTerms struct {
	PaperIdx int         `json:"paper_idx"`
	Title    string      `json:"title"`
	TopTerms []TermScore `json:"top_terms"`
}

// Result is the outcome of comparing a corpus. Matrix rows, TopTerms and
// PaperTitles are aligned with the input document order.
type Result struct {
	Matrix      [][]float64     `json:"matrix"`
	Pairs       []Pair          `json:"pairs"`
	TopTerms    []DocumentTerms `json:"top_terms"`
	PaperTitles []string        `json:"paper_titles"`

	// Sufficient is false when the corpus had fewer than MinDocuments
	// documents; the matrix, pairs and top terms are then empty.
	Sufficient bool `json:"-"`
	// VocabularySize is the number of distinct terms in the corpus.
	VocabularySize int `json:"-"`
}

// Engine computes pairwise document similarity. The zero value is ready
// to use.
type Engine struct {
	// Workers bounds concurrent tokenization. Zero means GOMAXPROCS.
	Workers int
}

// Compare tokenizes every document, builds the corpus IDF table and
// returns the similarity matrix, ranked pairs and top terms.
func (e *Engine) Compare(docs []Document) Result {
	titles := make([]string, len(docs))
	for i, d := range docs {
		titles[i] = d.Title
	}

	if len(docs) < MinDocuments {
		return Result{
			Matrix:      [][]float64{},
			Pairs:       []Pair{},
			TopTerms:    []DocumentTerms{},
			PaperTitles: titles,
		}
	}

	tokens := e.tokenizeAll(docs)

	// Every vector depends on the complete IDF table.
	idf := BuildIDF(tokens)
	vectors := make([]Vector, len(tokens))
	for i, t := range tokens {
		vectors[i] = TFIDF(TermFrequency(t), idf)
	}

	matrix, pairs := Matrix(vectors, titles)

	topTerms := make([]DocumentTerms, len(vectors))
	for i, v := range vectors {
		topTerms[i] = DocumentTerms{
			PaperIdx: i,
			Title:    titles[i],
			TopTerms: TopTerms(v, TopTermsLimit),
		}
	}

	return Result{
		Matrix:         matrix,
		Pairs:          pairs,
		TopTerms:       topTerms,
		PaperTitles:    titles,
		Sufficient:     true,
		VocabularySize: idf.Len(),
	}
}

// tokenizeAll tokenizes documents in parallel; results are stored by index.
func (e *Engine) tokenizeAll(docs []Document) [][]string {
	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	tokens := make([][]string, len(docs))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, d := range docs {
		g.Go(func() error {
			tokens[i] = Tokenize(d.Text())
			return nil
		})
	}
	_ = g.Wait() // tokenization cannot fail
	return tokens
}

// Matrix builds the symmetric similarity matrix for vectors and the list
// of unordered pairs sorted by decreasing similarity. The diagonal is
// fixed at 1. Each off-diagonal value is computed once and mirrored.
// Ties keep (i, j) ascending order.
func Matrix(vectors []Vector, titles []string) ([][]float64, []Pair) {
	n := len(vectors)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1.0
	}

	pairs := make([]Pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim := Cosine(vectors[i], vectors[j])
			matrix[i][j] = sim
			matrix[j][i] = sim
			pairs = append(pairs, Pair{
				PaperAIdx:   i,
				PaperBIdx:   j,
				PaperATitle: titleAt(titles, i),
				PaperBTitle: titleAt(titles, j),
				Similarity:  sim,
			})
		}
	}

	sort.SliceStable(pairs, func(a, b int) bool {
		return pairs[a].Similarity > pairs[b].Similarity
	})
	return matrix, pairs
}

func titleAt(titles []string, i int) string {
	if i < len(titles) {
		return titles[i]
	}
	return ""
}

// TopTerms returns up to limit terms of v ordered by decreasing weight,
// with scores rounded to ScorePlaces. Equal weights keep the vector's
// term order.
func TopTerms(v Vector, limit int) []TermScore {
	terms := make([]string, v.Len())
	copy(terms, v.terms)
	sort.SliceStable(terms, func(a, b int) bool {
		return v.weights[terms[a]] > v.weights[terms[b]]
	})

	if len(terms) > limit {
		terms = terms[:limit]
	}
	out := make([]TermScore, len(terms))
	for i, t := range terms {
		out[i] = TermScore{Term: t, Score: Round(v.weights[t], ScorePlaces)}
	}
	return out
}
