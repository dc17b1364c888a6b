package similarity

import (
	"math"
	"sort"
)

// DefaultIDF is the weight used for terms missing from an IDF table.
const DefaultIDF = 1.0

// Vector is a sparse term-weight vector. Terms keep the order in which
// they were first added, which makes iteration and tie-breaking
// deterministic.
type Vector struct {
	terms   []string
	weights map[string]float64
}

func newVector(capacity int) Vector {
	return Vector{
		terms:   make([]string, 0, capacity),
		weights: make(map[string]float64, capacity),
	}
}

func (v *Vector) add(term string, w float64) {
	if _, ok := v.weights[term]; !ok {
		v.terms = append(v.terms, term)
	}
	v.weights[term] = w
}

// Len returns the number of terms in the vector.
func (v Vector) Len() int {
	return len(v.terms)
}

// Terms returns the vector's terms in insertion order.
// The returned slice must not be modified.
func (v Vector) Terms() []string {
	return v.terms
}

// Weight returns the weight stored for term.
func (v Vector) Weight(term string) (float64, bool) {
	w, ok := v.weights[term]
	return w, ok
}

// asMap returns a copy of the vector as a plain map.
func (v Vector) asMap() map[string]float64 {
	m := make(map[string]float64, len(v.weights))
	for t, w := range v.weights {
		m[t] = w
	}
	return m
}

// Norm returns the L2 norm over all of the vector's terms.
func (v Vector) Norm() float64 {
	var sum float64
	for _, t := range v.terms {
		w := v.weights[t]
		sum += w * w
	}
	return math.Sqrt(sum)
}

// TermFrequency maps each distinct token to its count divided by the
// total number of tokens. Terms appear in first-occurrence order.
// An empty sequence gives an empty vector.
func TermFrequency(tokens []string) Vector {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, t := range tokens {
		if counts[t] == 0 {
			order = append(order, t)
		}
		counts[t]++
	}

	v := newVector(len(order))
	total := float64(len(tokens))
	for _, t := range order {
		v.add(t, float64(counts[t])/total)
	}
	return v
}

// IDF holds smoothed inverse document frequencies for one corpus.
type IDF struct {
	weights map[string]float64
	docs    int
}

// BuildIDF computes idf = ln((N+1)/(df+1)) + 1 for every term that
// occurs in at least one of the token sequences, where N is the number
// of sequences and df counts the sequences containing the term.
func BuildIDF(docs [][]string) IDF {
	df := make(map[string]int)
	for _, tokens := range docs {
		seen := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}

	n := float64(len(docs))
	weights := make(map[string]float64, len(df))
	for t, count := range df {
		weights[t] = math.Log((n+1)/(float64(count)+1)) + 1
	}
	return IDF{weights: weights, docs: len(docs)}
}

// Lookup returns the IDF weight of term, or DefaultIDF when the term
// never occurred in the corpus.
func (idf IDF) Lookup(term string) float64 {
	if w, ok := idf.weights[term]; ok {
		return w
	}
	return DefaultIDF
}

// Contains reports whether the corpus contained term.
func (idf IDF) Contains(term string) bool {
	_, ok := idf.weights[term]
	return ok
}

// Len returns the vocabulary size of the corpus.
func (idf IDF) Len() int {
	return len(idf.weights)
}

// documents returns the number of documents the table was built from.
func (idf IDF) documents() int {
	return idf.docs
}

// TFIDF weights each term of tf by its IDF. Only terms present in tf
// appear in the result, in the same order.
func TFIDF(tf Vector, idf IDF) Vector {
	v := newVector(tf.Len())
	for _, t := range tf.terms {
		v.add(t, tf.weights[t]*idf.Lookup(t))
	}
	return v
}

// Cosine returns the cosine similarity of a and b rounded to four
// decimal places. The dot product runs over the shared terms and each
// norm over the vector's own terms. Vectors without shared terms or
// with a zero norm have similarity 0. Cosine(a, b) == Cosine(b, a)
// holds exactly.
func Cosine(a, b Vector) float64 {
	small, large := a, b
	if small.Len() > large.Len() {
		small, large = large, small
	}

	var shared []string
	for _, t := range small.terms {
		if _, ok := large.weights[t]; ok {
			shared = append(shared, t)
		}
	}
	if len(shared) == 0 {
		return 0
	}

	// Summation order must not depend on argument order.
	sort.Strings(shared)
	var dot float64
	for _, t := range shared {
		dot += a.weights[t] * b.weights[t]
	}

	normA, normB := a.Norm(), b.Norm()
	if normA == 0 || normB == 0 {
		return 0
	}
	return Round(dot/(normA*normB), 4)
}

// Round rounds x to the given number of decimal places.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
