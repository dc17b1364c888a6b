// Package search finds papers on Semantic Scholar with an arXiv fallback
// and groups them into a topic-keyed dataset.
package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/matsen/litsynth/internal/reference"
)

// DefaultLimit is the number of papers requested per topic.
const DefaultLimit = 3

// TopicPause is the delay between topics in SearchTopics.
const TopicPause = time.Second

// Source is a bibliographic search backend.
type Source interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]reference.Reference, error)
}

// Searcher queries a primary source and falls back to a second source
// when the primary fails or finds nothing.
type Searcher struct {
	primary  Source
	fallback Source
	pause    time.Duration
	logger   *slog.Logger
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithPause sets the delay between topics.
func WithPause(d time.Duration) SearcherOption {
	return func(s *Searcher) { s.pause = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) SearcherOption {
	return func(s *Searcher) { s.logger = l }
}

// NewSearcher returns a searcher. fallback may be nil.
func NewSearcher(primary, fallback Source, opts ...SearcherOption) *Searcher {
	s := &Searcher{
		primary:  primary,
		fallback: fallback,
		pause:    TopicPause,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns papers for topic. An empty result from both sources is
// not an error; an error is returned only when every source failed.
func (s *Searcher) Search(ctx context.Context, topic string, limit int) ([]reference.Reference, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	refs, primaryErr := s.primary.Search(ctx, topic, limit)
	if primaryErr != nil {
		s.logger.Warn("primary search failed, trying fallback", "source", s.primary.Name(), "topic", topic, "error", primaryErr)
	} else {
		s.logger.Info("search results", "source", s.primary.Name(), "topic", topic, "papers", len(refs))
	}

	if len(refs) == 0 && s.fallback != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var fallbackErr error
		refs, fallbackErr = s.fallback.Search(ctx, topic, limit)
		if fallbackErr != nil {
			s.logger.Error("fallback search failed", "source", s.fallback.Name(), "topic", topic, "error", fallbackErr)
			if primaryErr != nil {
				return nil, errors.Join(primaryErr, fallbackErr)
			}
			return []reference.Reference{}, nil
		}
		s.logger.Info("search results", "source", s.fallback.Name(), "topic", topic, "papers", len(refs))
	} else if primaryErr != nil {
		return nil, primaryErr
	}

	if len(refs) == 0 {
		s.logger.Warn("no papers found from any source", "topic", topic)
		return []reference.Reference{}, nil
	}

	for i := range refs {
		refs[i].Abstract = CleanAbstract(refs[i].Abstract)
		if refs[i].Abstract == "" {
			refs[i].Abstract = reference.NoAbstract
		}
		refs[i].Topic = topic
	}
	return refs, nil
}

// SearchTopics searches each topic in order, pausing between topics.
// Blank topics are skipped. A failed topic yields an empty entry; only
// context cancellation aborts the run.
func (s *Searcher) SearchTopics(ctx context.Context, topics []string, limit int) (*Dataset, error) {
	ds := &Dataset{}
	for i, topic := range topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}

		s.logger.Info("searching topic", "index", i+1, "of", len(topics), "topic", topic)
		refs, err := s.Search(ctx, topic, limit)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ds, ctxErr
			}
			s.logger.Error("topic search failed", "topic", topic, "error", err)
			refs = []reference.Reference{}
		}
		ds.Set(topic, refs)

		if i < len(topics)-1 && s.pause > 0 {
			select {
			case <-ctx.Done():
				return ds, ctx.Err()
			case <-time.After(s.pause):
			}
		}
	}
	return ds, nil
}

// SplitTopics splits a comma or newline separated list of topics,
// dropping blanks.
func SplitTopics(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' })
	topics := make([]string, 0, len(fields))
	for _, f := range fields {
		if t := strings.TrimSpace(f); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// NormalizeTopics trims topics, drops blanks, and expands any comma
// separated entries.
func NormalizeTopics(args []string) []string {
	var topics []string
	for _, a := range args {
		topics = append(topics, SplitTopics(a)...)
	}
	return topics
}
