// Package cache stores analysis and synthesis results keyed by a hash
// of the input papers.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/matsen/litsynth/internal/storage"
)

// DefaultTTL is how long entries stay valid.
const DefaultTTL = 24 * time.Hour

// Entry kinds stored in the cache table.
const (
	KindAnalysis  = "analysis"
	KindSynthesis = "synthesis"
	KindSection   = "section"
)

// Cache is a TTL cache backed by the workspace database.
type Cache struct {
	db     *storage.DB
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock sets the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New returns a cache over db.
func New(db *storage.DB, opts ...Option) *Cache {
	c := &Cache{
		db:     db,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Hash returns the first 16 hex characters of the SHA-256 of v encoded
// as JSON with sorted object keys.
func Hash(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding hash input: %w", err)
	}
	// Round-trip through a generic value so struct field order does not
	// matter; map keys are marshaled sorted.
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", fmt.Errorf("decoding hash input: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("encoding hash input: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:16], nil
}

// AnalysisKey returns the key for an analysis result.
func AnalysisKey(hash string) string { return "papers_" + hash }

// SynthesisKey returns the key for a full synthesis.
func SynthesisKey(hash string) string { return "synthesis_" + hash }

// SectionKey returns the key for one synthesized section.
func SectionKey(hash, section string) string { return "section_" + hash + "_" + section }

// get decodes the entry at key into dst. Expired entries are misses and
// are removed.
func (c *Cache) get(key string, dst any) (bool, error) {
	e, err := c.db.GetCacheEntry(key)
	if err != nil {
		return false, err
	}
	if e == nil {
		return false, nil
	}
	if c.now().Sub(e.CreatedAt) > c.ttl {
		c.logger.Debug("cache entry expired", "key", key, "age", c.now().Sub(e.CreatedAt).Round(time.Second))
		if err := c.db.DeleteCacheEntry(key); err != nil {
			c.logger.Warn("removing expired cache entry", "key", key, "error", err)
		}
		return false, nil
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return false, fmt.Errorf("decoding cache entry %s: %w", key, err)
	}
	c.logger.Debug("cache hit", "key", key)
	return true, nil
}

func (c *Cache) put(key, kind, hash string, count int, section string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", key, err)
	}
	return c.db.PutCacheEntry(storage.CacheEntry{
		Key:        key,
		Kind:       kind,
		PapersHash: hash,
		PaperCount: count,
		Section:    section,
		CreatedAt:  c.now(),
		Payload:    payload,
	})
}

// GetAnalysis loads the cached analysis for a papers hash into dst.
func (c *Cache) GetAnalysis(hash string, dst any) (bool, error) {
	return c.get(AnalysisKey(hash), dst)
}

// PutAnalysis stores an analysis result for count papers.
func (c *Cache) PutAnalysis(hash string, count int, v any) error {
	return c.put(AnalysisKey(hash), KindAnalysis, hash, count, "", v)
}

// GetSynthesis loads a cached full synthesis into dst.
func (c *Cache) GetSynthesis(hash string, dst any) (bool, error) {
	return c.get(SynthesisKey(hash), dst)
}

// PutSynthesis stores a full synthesis.
func (c *Cache) PutSynthesis(hash string, count int, v any) error {
	return c.put(SynthesisKey(hash), KindSynthesis, hash, count, "", v)
}

// GetSection returns a cached section text.
func (c *Cache) GetSection(hash, section string) (string, bool, error) {
	var text string
	ok, err := c.get(SectionKey(hash, section), &text)
	return text, ok, err
}

// PutSection stores a section text.
func (c *Cache) PutSection(hash string, count int, section, text string) error {
	return c.put(SectionKey(hash, section), KindSection, hash, count, section, text)
}

// Stats summarizes the cache.
type Stats struct {
	AnalysisEntries  int     `json:"analysis_entries"`
	SynthesisEntries int     `json:"synthesis_entries"` // Full documents and sections
	CachePath        string  `json:"cache_path"`
	TotalSizeMB      float64 `json:"total_size_mb"`
}

// Stats returns entry counts and the database size.
func (c *Cache) Stats() (Stats, error) {
	var s Stats
	var err error
	if s.AnalysisEntries, err = c.db.CountCacheEntries(KindAnalysis); err != nil {
		return s, fmt.Errorf("counting analysis entries: %w", err)
	}
	synth, err := c.db.CountCacheEntries(KindSynthesis)
	if err != nil {
		return s, fmt.Errorf("counting synthesis entries: %w", err)
	}
	sections, err := c.db.CountCacheEntries(KindSection)
	if err != nil {
		return s, fmt.Errorf("counting section entries: %w", err)
	}
	s.SynthesisEntries = synth + sections
	s.CachePath = c.db.Path()
	if info, err := os.Stat(s.CachePath); err == nil {
		s.TotalSizeMB = math.Round(float64(info.Size())/(1024*1024)*100) / 100
	}
	return s, nil
}

// InvalidateAnalysis removes all analysis entries.
func (c *Cache) InvalidateAnalysis() error {
	_, err := c.db.DeleteCacheEntries(KindAnalysis)
	return err
}

// InvalidateSynthesis removes full syntheses and cached sections.
func (c *Cache) InvalidateSynthesis() error {
	_, err := c.db.DeleteCacheEntries(KindSynthesis, KindSection)
	return err
}

// InvalidateAll empties the cache.
func (c *Cache) InvalidateAll() error {
	_, err := c.db.DeleteCacheEntries()
	return err
}

// Purge removes expired entries and returns how many were removed.
func (c *Cache) Purge() (int64, error) {
	return c.db.PurgeCacheEntries(c.now().Add(-c.ttl))
}
