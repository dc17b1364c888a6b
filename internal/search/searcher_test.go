package search

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/matsen/litsynth/internal/logging"
	"github.com/matsen/litsynth/internal/reference"
)

type fakeSource struct {
	name  string
	refs  map[string][]reference.Reference
	err   error
	calls []string
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Search(ctx context.Context, query string, limit int) ([]reference.Reference, error) {
	f.calls = append(f.calls, query)
	if f.err != nil {
		return nil, f.err
	}
	refs := f.refs[query]
	if len(refs) > limit {
		refs = refs[:limit]
	}
	out := make([]reference.Reference, len(refs))
	copy(out, refs)
	return out, nil
}

func newTestSearcher(primary, fallback Source) *Searcher {
	return NewSearcher(primary, fallback, WithPause(0), WithLogger(logging.Discard()))
}

func TestSearcher_EmptyTopic(t *testing.T) {
	s := newTestSearcher(&fakeSource{name: "p"}, nil)
	if _, err := s.Search(context.Background(), "   ", 3); !errors.Is(err, ErrEmptyTopic) {
		t.Errorf("Search() error = %v, want ErrEmptyTopic", err)
	}
}

func TestSearcher_Fallback(t *testing.T) {
	paper := reference.Reference{ID: "x", Title: "X", Abstract: "<p>Body</p>"}

	tests := []struct {
		name         string
		primary      *fakeSource
		fallback     *fakeSource
		wantIDs      []string
		wantErr      bool
		wantFallback bool
	}{
		{
			name:     "primary results",
			primary:  &fakeSource{name: "p", refs: map[string][]reference.Reference{"ml": {paper}}},
			fallback: &fakeSource{name: "f"},
			wantIDs:  []string{"x"},
		},
		{
			name:         "primary error",
			primary:      &fakeSource{name: "p", err: ErrRateLimited},
			fallback:     &fakeSource{name: "f", refs: map[string][]reference.Reference{"ml": {paper}}},
			wantIDs:      []string{"x"},
			wantFallback: true,
		},
		{
			name:         "primary empty",
			primary:      &fakeSource{name: "p"},
			fallback:     &fakeSource{name: "f", refs: map[string][]reference.Reference{"ml": {paper}}},
			wantIDs:      []string{"x"},
			wantFallback: true,
		},
		{
			name:         "both empty",
			primary:      &fakeSource{name: "p"},
			fallback:     &fakeSource{name: "f"},
			wantIDs:      nil,
			wantFallback: true,
		},
		{
			name:         "both fail",
			primary:      &fakeSource{name: "p", err: ErrRateLimited},
			fallback:     &fakeSource{name: "f", err: ErrNetworkError},
			wantErr:      true,
			wantFallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSearcher(tt.primary, tt.fallback)
			refs, err := s.Search(context.Background(), " ml ", 3)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Search() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrRateLimited) || !errors.Is(err, ErrNetworkError) {
					t.Errorf("joined error = %v", err)
				}
				return
			}

			var ids []string
			for _, r := range refs {
				ids = append(ids, r.ID)
				if r.Topic != "ml" {
					t.Errorf("Topic = %q, want ml", r.Topic)
				}
				if r.Abstract != "Body" {
					t.Errorf("Abstract = %q, want cleaned", r.Abstract)
				}
			}
			if !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Errorf("IDs = %v, want %v", ids, tt.wantIDs)
			}
			if refs == nil {
				t.Error("Search() returned nil slice, want empty")
			}
			if got := len(tt.fallback.calls) > 0; got != tt.wantFallback {
				t.Errorf("fallback called = %v, want %v", got, tt.wantFallback)
			}
		})
	}
}

func TestSearcher_SearchTopics(t *testing.T) {
	primary := &fakeSource{name: "p", refs: map[string][]reference.Reference{
		"alpha": {{ID: "a1"}, {ID: "a2"}},
		"beta":  {{ID: "b1"}},
	}}
	s := newTestSearcher(primary, &fakeSource{name: "f"})

	ds, err := s.SearchTopics(context.Background(), []string{"beta", " ", "alpha", "gamma"}, 3)
	if err != nil {
		t.Fatalf("SearchTopics() error = %v", err)
	}
	if want := []string{"beta", "alpha", "gamma"}; !reflect.DeepEqual(ds.Topics(), want) {
		t.Errorf("Topics() = %v, want %v", ds.Topics(), want)
	}
	if ds.Total() != 3 {
		t.Errorf("Total() = %d, want 3", ds.Total())
	}
	if len(ds.Papers("gamma")) != 0 {
		t.Errorf("gamma papers = %v", ds.Papers("gamma"))
	}
}

func TestSearcher_SearchTopics_Cancelled(t *testing.T) {
	primary := &fakeSource{name: "p", refs: map[string][]reference.Reference{"a": {{ID: "1"}}}}
	s := NewSearcher(primary, nil, WithPause(time.Hour), WithLogger(logging.Discard()))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	ds, err := s.SearchTopics(ctx, []string{"a", "b"}, 3)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("SearchTopics() error = %v, want context.Canceled", err)
	}
	if len(ds.Topics()) != 1 {
		t.Errorf("partial dataset topics = %v", ds.Topics())
	}
}

func TestSplitTopics(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"graph networks, protein folding", []string{"graph networks", "protein folding"}},
		{"single", []string{"single"}},
		{" , ,\n", []string{}},
		{"a\nb", []string{"a", "b"}},
	}
	for _, tt := range tests {
		if got := SplitTopics(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitTopics(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if got := NormalizeTopics([]string{"a, b", "c"}); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("NormalizeTopics() = %v", got)
	}
}
