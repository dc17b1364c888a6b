package search

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/matsen/litsynth/internal/config"
	"github.com/matsen/litsynth/internal/reference"
	"github.com/matsen/litsynth/internal/storage"
)

// TopicPapers is one dataset entry.
type TopicPapers struct {
	Topic  string
	Papers []reference.Reference
}

// Dataset maps topics to papers, preserving topic insertion order. It
// serializes as a JSON object whose keys appear in that order.
type Dataset struct {
	entries []TopicPapers
}

// Set stores papers for topic, replacing an existing entry in place.
func (d *Dataset) Set(topic string, papers []reference.Reference) {
	if papers == nil {
		papers = []reference.Reference{}
	}
	for i := range d.entries {
		if d.entries[i].Topic == topic {
			d.entries[i].Papers = papers
			return
		}
	}
	d.entries = append(d.entries, TopicPapers{Topic: topic, Papers: papers})
}

// Entries returns the topic entries in order.
func (d *Dataset) Entries() []TopicPapers {
	return d.entries
}

// Topics returns topic names in order.
func (d *Dataset) Topics() []string {
	topics := make([]string, len(d.entries))
	for i, e := range d.entries {
		topics[i] = e.Topic
	}
	return topics
}

// Papers returns the papers stored for topic.
func (d *Dataset) Papers(topic string) []reference.Reference {
	for _, e := range d.entries {
		if e.Topic == topic {
			return e.Papers
		}
	}
	return nil
}

// All flattens the dataset in topic order.
func (d *Dataset) All() []reference.Reference {
	all := make([]reference.Reference, 0, d.Total())
	for _, e := range d.entries {
		all = append(all, e.Papers...)
	}
	return all
}

// Total returns the number of papers across all topics.
func (d *Dataset) Total() int {
	n := 0
	for _, e := range d.entries {
		n += len(e.Papers)
	}
	return n
}

// MarshalJSON writes the dataset as an ordered JSON object.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Topic)
		if err != nil {
			return nil, err
		}
		papers, err := json.Marshal(e.Papers)
		if err != nil {
			return nil, fmt.Errorf("encoding topic %q: %w", e.Topic, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(papers)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an ordered JSON object of topic → papers.
func (d *Dataset) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("dataset: expected object, got %v", tok)
	}

	d.entries = nil
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		topic, ok := tok.(string)
		if !ok {
			return fmt.Errorf("dataset: expected topic key, got %v", tok)
		}
		var papers []reference.Reference
		if err := dec.Decode(&papers); err != nil {
			return fmt.Errorf("dataset: decoding topic %q: %w", topic, err)
		}
		d.Set(topic, papers)
	}
	_, err = dec.Token()
	return err
}

// SaveDataset writes the topic-keyed dataset and the flattened corpus
// to the workspace.
func SaveDataset(root string, d *Dataset) error {
	if err := storage.WriteJSON(config.DatasetPath(root), d); err != nil {
		return fmt.Errorf("saving dataset: %w", err)
	}
	if err := storage.WriteAll(config.PapersPath(root), d.All()); err != nil {
		return fmt.Errorf("saving papers: %w", err)
	}
	return nil
}

// LoadDataset reads the topic-keyed dataset from the workspace.
func LoadDataset(root string) (*Dataset, error) {
	d := &Dataset{}
	if err := storage.ReadJSON(config.DatasetPath(root), d); err != nil {
		return nil, err
	}
	return d, nil
}
