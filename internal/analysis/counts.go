package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Count is one key of a frequency table.
type Count struct {
	Key string
	N   int
}

// Counts is a frequency table that keeps its order when encoded as a
// JSON object.
type Counts []Count

// Keys returns the keys in order.
func (c Counts) Keys() []string {
	keys := make([]string, len(c))
	for i, e := range c {
		keys[i] = e.Key
	}
	return keys
}

// Get returns the count of key, or 0.
func (c Counts) Get(key string) int {
	for _, e := range c {
		if e.Key == key {
			return e.N
		}
	}
	return 0
}

// MarshalJSON writes the table as an ordered JSON object.
func (c Counts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", e.N)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of key → count, keeping its order.
func (c *Counts) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("counts: expected object, got %v", tok)
	}

	out := Counts{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("counts: expected key, got %v", tok)
		}
		var n int
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("counts: decoding %q: %w", key, err)
		}
		out = append(out, Count{Key: key, N: n})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

// tally counts keys in order of first occurrence.
func tally(keys []string) Counts {
	index := make(map[string]int)
	var out Counts
	for _, k := range keys {
		if i, ok := index[k]; ok {
			out[i].N++
			continue
		}
		index[k] = len(out)
		out = append(out, Count{Key: k, N: 1})
	}
	return out
}

// mostCommon returns the n highest counts; equal counts keep first
// occurrence order.
func mostCommon(c Counts, n int) Counts {
	sorted := make(Counts, len(c))
	copy(sorted, c)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].N > sorted[j].N })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
