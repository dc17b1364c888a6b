package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/matsen/litsynth/internal/reference"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db   *sql.DB
	path string
}

// selectPaperFields contains the standard field list for SELECT queries.
const selectPaperFields = `id, title, abstract, venue, year, publication_date,
	citations, url, pdf_url, source, topic, local_pdf, authors_json`

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db, path: path}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			abstract TEXT,
			venue TEXT,
			year INTEGER,
			publication_date TEXT,
			citations INTEGER NOT NULL DEFAULT 0,
			url TEXT,
			pdf_url TEXT,
			source TEXT NOT NULL,
			topic TEXT,
			local_pdf TEXT,
			authors_json TEXT NOT NULL
		);

		-- Full-text search virtual table (standalone, not external content)
		CREATE VIRTUAL TABLE IF NOT EXISTS papers_fts USING fts5(
			id,
			title,
			abstract,
			authors_text,
			topic
		);

		CREATE TABLE IF NOT EXISTS cache_entries (
			key TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			papers_hash TEXT NOT NULL,
			paper_count INTEGER NOT NULL DEFAULT 0,
			section TEXT,
			created_at INTEGER NOT NULL,
			payload TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_cache_kind ON cache_entries(kind);
	`

	_, err := db.Exec(schema)
	return err
}

// RebuildIndex replaces the indexed papers with refs.
func (d *DB) RebuildIndex(refs []reference.Reference) (int, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM papers"); err != nil {
		return 0, fmt.Errorf("clearing papers table: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM papers_fts"); err != nil {
		return 0, fmt.Errorf("clearing papers_fts table: %w", err)
	}

	papersStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO papers (` + selectPaperFields + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing papers insert: %w", err)
	}
	defer papersStmt.Close()

	ftsStmt, err := tx.Prepare(`
		INSERT INTO papers_fts (id, title, abstract, authors_text, topic)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing fts insert: %w", err)
	}
	defer ftsStmt.Close()

	seen := make(map[string]bool, len(refs))
	for i, ref := range refs {
		id := ref.ID
		if id == "" {
			id = "paper-" + strconv.Itoa(i)
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		authorsJSON, err := json.Marshal(ref.Authors)
		if err != nil {
			return 0, fmt.Errorf("marshaling authors for %s: %w", id, err)
		}

		_, err = papersStmt.Exec(
			id, ref.Title, ref.Abstract, ref.Venue, ref.Year, ref.PublicationDate,
			ref.Citations, ref.URL, ref.PDFURL, ref.Source, ref.Topic, ref.LocalPDF,
			string(authorsJSON),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting paper %s: %w", id, err)
		}

		authorsText := strings.Join(ref.AuthorNames(), ", ")
		if _, err := ftsStmt.Exec(id, ref.Title, ref.Abstract, authorsText, ref.Topic); err != nil {
			return 0, fmt.Errorf("inserting fts for %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing index: %w", err)
	}
	return len(seen), nil
}

// GetByID retrieves a paper by its ID. Returns nil if not found.
func (d *DB) GetByID(id string) (*reference.Reference, error) {
	row := d.db.QueryRow(`SELECT `+selectPaperFields+` FROM papers WHERE id = ?`, id)
	return scanReference(row)
}

// Search performs a full-text search ranked by FTS5 relevance.
func (d *DB) Search(query string, limit int) ([]reference.Reference, error) {
	ftsQuery := prepareFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := d.db.Query(`
		SELECT `+prefixed("p.", selectPaperFields)+`
		FROM papers_fts JOIN papers p ON p.id = papers_fts.id
		WHERE papers_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	return scanReferences(rows)
}

// ListAll returns all indexed papers ordered by citations, optionally limited.
func (d *DB) ListAll(limit int) ([]reference.Reference, error) {
	query := `SELECT ` + selectPaperFields + ` FROM papers ORDER BY citations DESC, id`
	var args []any

	if limit > 0 {
		query += " LIMIT ?"
		args = []any{limit}
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing papers: %w", err)
	}
	defer rows.Close()

	return scanReferences(rows)
}

// Count returns the number of indexed papers.
func (d *DB) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM papers").Scan(&count)
	return count, err
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanReference(s scanner) (*reference.Reference, error) {
	var ref reference.Reference
	var abstract, venue, pubDate, url, pdfURL, topic, localPDF sql.NullString
	var year sql.NullInt64
	var authorsJSON string

	err := s.Scan(
		&ref.ID, &ref.Title, &abstract, &venue, &year, &pubDate,
		&ref.Citations, &url, &pdfURL, &ref.Source, &topic, &localPDF,
		&authorsJSON,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	ref.Abstract = abstract.String
	ref.Venue = venue.String
	ref.PublicationDate = pubDate.String
	ref.URL = url.String
	ref.PDFURL = pdfURL.String
	ref.Topic = topic.String
	ref.LocalPDF = localPDF.String
	if year.Valid {
		ref.Year = int(year.Int64)
	}

	if err := json.Unmarshal([]byte(authorsJSON), &ref.Authors); err != nil {
		return nil, fmt.Errorf("parsing authors JSON for %s: %w", ref.ID, err)
	}

	return &ref, nil
}

func scanReferences(rows *sql.Rows) ([]reference.Reference, error) {
	var refs []reference.Reference
	for rows.Next() {
		ref, err := scanReference(rows)
		if err != nil {
			return nil, err
		}
		if ref != nil {
			refs = append(refs, *ref)
		}
	}
	return refs, rows.Err()
}

func prefixed(prefix, fields string) string {
	parts := strings.Split(fields, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// prepareFTSQuery escapes special characters for FTS5 queries.
func prepareFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	// If query contains special chars, quote it
	if strings.ContainsAny(query, "\"*+-:(){}[]^~.,'") {
		query = strings.ReplaceAll(query, "\"", "\"\"")
		return "\"" + query + "\""
	}

	return query
}

// CacheEntry is one row of the cache_entries table.
type CacheEntry struct {
	Key        string
	Kind       string // analysis, synthesis, section
	PapersHash string
	PaperCount int
	Section    string
	CreatedAt  time.Time
	Payload    []byte // JSON
}

// PutCacheEntry inserts or replaces a cache entry.
func (d *DB) PutCacheEntry(e CacheEntry) error {
	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO cache_entries (key, kind, papers_hash, paper_count, section, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.Key, e.Kind, e.PapersHash, e.PaperCount, e.Section, e.CreatedAt.UnixNano(), string(e.Payload))
	if err != nil {
		return fmt.Errorf("writing cache entry %s: %w", e.Key, err)
	}
	return nil
}

// GetCacheEntry retrieves a cache entry by key. Returns nil if absent.
func (d *DB) GetCacheEntry(key string) (*CacheEntry, error) {
	var e CacheEntry
	var section sql.NullString
	var created int64
	var payload string
	err := d.db.QueryRow(`
		SELECT key, kind, papers_hash, paper_count, section, created_at, payload
		FROM cache_entries WHERE key = ?
	`, key).Scan(&e.Key, &e.Kind, &e.PapersHash, &e.PaperCount, &section, &created, &payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache entry %s: %w", key, err)
	}
	e.Section = section.String
	e.CreatedAt = time.Unix(0, created)
	e.Payload = []byte(payload)
	return &e, nil
}

// DeleteCacheEntry removes a single entry.
func (d *DB) DeleteCacheEntry(key string) error {
	_, err := d.db.Exec("DELETE FROM cache_entries WHERE key = ?", key)
	return err
}

// DeleteCacheEntries removes every entry of the given kinds, or all
// entries when no kind is given. It returns the number removed.
func (d *DB) DeleteCacheEntries(kinds ...string) (int64, error) {
	query := "DELETE FROM cache_entries"
	var args []any
	if len(kinds) > 0 {
		query += " WHERE kind IN (" + placeholders(len(kinds)) + ")"
		for _, k := range kinds {
			args = append(args, k)
		}
	}
	res, err := d.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("clearing cache: %w", err)
	}
	return res.RowsAffected()
}

// CountCacheEntries returns the number of entries of the given kind.
func (d *DB) CountCacheEntries(kind string) (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM cache_entries WHERE kind = ?", kind).Scan(&count)
	return count, err
}

// PurgeCacheEntries removes entries created before cutoff.
func (d *DB) PurgeCacheEntries(cutoff time.Time) (int64, error) {
	res, err := d.db.Exec("DELETE FROM cache_entries WHERE created_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purging cache: %w", err)
	}
	return res.RowsAffected()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
