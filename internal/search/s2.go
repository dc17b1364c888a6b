package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matsen/litsynth/internal/reference"
	"golang.org/x/time/rate"
)

const (
	// S2BaseURL is the Semantic Scholar paper search endpoint.
	S2BaseURL = "https://api.semanticscholar.org/graph/v1/paper/search"

	// S2Fields are the fields requested for each paper.
	S2Fields = "title,authors,year,abstract,url,openAccessPdf,citationCount,venue,publicationDate"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 10 * time.Second

	// Unauthenticated clients share a public pool; keyed clients get more.
	s2RateLimit      = 1.0
	s2KeyedRateLimit = 10.0
)

// Placeholders stored when a source omits a field.
const (
	MissingTitle = "N/A"
	MissingVenue = "Unknown"
)

// S2Client is a rate-limited Semantic Scholar search client.
type S2Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	baseURL    string
}

// S2Option configures an S2Client.
type S2Option func(*S2Client)

// WithS2APIKey sets the API key sent as x-api-key.
func WithS2APIKey(key string) S2Option {
	return func(c *S2Client) {
		c.apiKey = key
	}
}

// WithS2BaseURL sets a custom endpoint (for testing).
func WithS2BaseURL(u string) S2Option {
	return func(c *S2Client) {
		c.baseURL = u
	}
}

// WithS2HTTPClient sets a custom HTTP client.
func WithS2HTTPClient(hc *http.Client) S2Option {
	return func(c *S2Client) {
		c.httpClient = hc
	}
}

// WithS2RateLimit overrides the request rate (requests per second).
func WithS2RateLimit(rps float64) S2Option {
	return func(c *S2Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewS2Client creates a Semantic Scholar client.
func NewS2Client(opts ...S2Option) *S2Client {
	c := &S2Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    S2BaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		rps := s2RateLimit
		if c.apiKey != "" {
			rps = s2KeyedRateLimit
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return c
}

// Name identifies the source.
func (c *S2Client) Name() string { return reference.SourceSemanticScholar }

type s2SearchResponse struct {
	Total int       `json:"total"`
	Data  []s2Paper `json:"data"`
}

type s2Paper struct {
	PaperID         string     `json:"paperId"`
	Title           *string    `json:"title"`
	Authors         []s2Author `json:"authors"`
	Year            *int       `json:"year"`
	Abstract        *string    `json:"abstract"`
	URL             string     `json:"url"`
	OpenAccessPDF   *s2PDF     `json:"openAccessPdf"`
	CitationCount   int        `json:"citationCount"`
	Venue           *string    `json:"venue"`
	PublicationDate *string    `json:"publicationDate"`
}

type s2Author struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type s2PDF struct {
	URL string `json:"url"`
}

// Search returns up to limit papers matching query.
func (c *S2Client) Search(ctx context.Context, query string, limit int) ([]reference.Reference, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("query", strings.TrimSpace(query))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("fields", S2Fields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPStatus(c.Name(), resp.StatusCode); err != nil {
		return nil, err
	}

	var result s2SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	refs := make([]reference.Reference, 0, len(result.Data))
	for _, p := range result.Data {
		refs = append(refs, mapS2Paper(p))
	}
	return refs, nil
}

// mapS2Paper converts an API paper into a Reference, filling placeholders
// for missing fields.
func mapS2Paper(p s2Paper) reference.Reference {
	ref := reference.Reference{
		ID:        p.PaperID,
		Title:     MissingTitle,
		Abstract:  reference.NoAbstract,
		Venue:     MissingVenue,
		URL:       p.URL,
		Citations: p.CitationCount,
		Source:    reference.SourceSemanticScholar,
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) != "" {
		ref.Title = strings.TrimSpace(*p.Title)
	}
	if p.Abstract != nil && strings.TrimSpace(*p.Abstract) != "" {
		ref.Abstract = *p.Abstract
	}
	if p.Venue != nil && strings.TrimSpace(*p.Venue) != "" {
		ref.Venue = *p.Venue
	}
	if p.Year != nil {
		ref.Year = *p.Year
	}
	if p.PublicationDate != nil {
		ref.PublicationDate = *p.PublicationDate
	}
	if p.OpenAccessPDF != nil {
		ref.PDFURL = p.OpenAccessPDF.URL
	}

	names := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		name := a.Name
		if name == "" {
			name = "Unknown"
		}
		names = append(names, name)
	}
	ref.Authors = reference.ParseAuthors(names)
	return ref
}
