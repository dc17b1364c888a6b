package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mtreilly/goarxiv"
	"golang.org/x/time/rate"

	"github.com/matsen/litsynth/internal/reference"
)

// ArxivBaseURL is the arXiv query API endpoint.
const ArxivBaseURL = "http://export.arxiv.org/api/query"

// arXiv asks clients to keep to one request every three seconds.
const arxivRateLimit = 1.0 / 3

// ArxivClient searches the arXiv Atom API.
type ArxivClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	retries    int

	api     *goarxiv.Client
	initErr error
}

// ArxivOption configures an ArxivClient.
type ArxivOption func(*ArxivClient)

// WithArxivBaseURL sets a custom endpoint (for testing).
func WithArxivBaseURL(u string) ArxivOption {
	return func(c *ArxivClient) {
		c.baseURL = u
	}
}

// WithArxivHTTPClient sets a custom HTTP client.
func WithArxivHTTPClient(hc *http.Client) ArxivOption {
	return func(c *ArxivClient) {
		c.httpClient = hc
	}
}

// WithArxivRateLimit overrides the request rate (requests per second).
func WithArxivRateLimit(rps float64) ArxivOption {
	return func(c *ArxivClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithArxivRetries sets how often a 5xx response or transport timeout is
// retried. Values below 1 fall back to goarxiv's default of 3.
func WithArxivRetries(n int) ArxivOption {
	return func(c *ArxivClient) {
		c.retries = n
	}
}

// arxivLimiter adapts rate.Limiter to goarxiv.RateLimiter.
type arxivLimiter struct {
	*rate.Limiter
}

func (arxivLimiter) IsDebugMode() bool { return false }

// NewArxivClient creates an arXiv client.
func NewArxivClient(opts ...ArxivOption) *ArxivClient {
	c := &ArxivClient{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(arxivRateLimit), 1),
		baseURL:    ArxivBaseURL,
		retries:    2,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.api, c.initErr = goarxiv.New(
		goarxiv.WithHTTPClient(c.httpClient),
		goarxiv.WithBaseURL(c.baseURL),
		goarxiv.WithRateLimiter(arxivLimiter{c.limiter}),
		goarxiv.WithRetries(c.retries),
		goarxiv.WithUserAgent("litsynth"),
	)
	return c
}

// Name identifies the source.
func (c *ArxivClient) Name() string { return reference.SourceArxiv }

// Search returns up to limit papers matching query across all fields.
func (c *ArxivClient) Search(ctx context.Context, query string, limit int) ([]reference.Reference, error) {
	if c.initErr != nil {
		return nil, fmt.Errorf("creating arxiv client: %w", c.initErr)
	}

	res, err := c.api.Search(ctx, "all:"+strings.TrimSpace(query), &goarxiv.SearchOptions{
		MaxResults: limit,
	})
	if err != nil {
		return nil, c.mapError(ctx, err)
	}

	refs := make([]reference.Reference, 0, len(res.Articles))
	for _, article := range res.Articles {
		ref, ok := articleToReference(article)
		if !ok {
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// mapError translates goarxiv failures into this package's errors.
func (c *ArxivClient) mapError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var apiErr *goarxiv.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode > 0:
			if statusErr := checkHTTPStatus(c.Name(), apiErr.StatusCode); statusErr != nil {
				return statusErr
			}
		case apiErr.Code == "parse_error":
			return fmt.Errorf("%w: parse feed: %v", ErrInvalidResponse, err)
		case apiErr.Code == "api_error":
			return fmt.Errorf("%w: %s", ErrInvalidResponse, apiErr.Message)
		}
	}
	return fmt.Errorf("%w: %v", ErrNetworkError, err)
}

// articleToReference converts an arXiv article to a Reference. Articles
// without a title are rejected.
func articleToReference(a goarxiv.Article) (reference.Reference, bool) {
	title := collapseSpace(a.Title)
	if title == "" {
		return reference.Reference{}, false
	}

	ref := reference.Reference{
		ID:        strings.TrimSpace(a.ID),
		Title:     title,
		Abstract:  collapseSpace(a.Summary),
		Venue:     "arXiv",
		URL:       strings.TrimSpace(a.ID),
		Citations: 0,
		Source:    reference.SourceArxiv,
	}
	if ref.Abstract == "" {
		ref.Abstract = reference.NoAbstract
	}
	if !a.Published.IsZero() {
		ref.Year = a.Published.Year()
		ref.PublicationDate = a.Published.Format("2006-01-02")
	}
	ref.PDFURL = pdfLink(a)

	names := make([]string, 0, len(a.Authors))
	for _, au := range a.Authors {
		names = append(names, au.Name)
	}
	ref.Authors = reference.ParseAuthors(names)
	return ref, true
}

// pdfLink prefers the link titled "pdf", then any PDF-typed link, then
// the canonical URL derived from a bare arXiv ID.
func pdfLink(a goarxiv.Article) string {
	for _, l := range a.Links {
		if l.Title != nil && *l.Title == "pdf" {
			return l.Href
		}
	}
	for _, l := range a.Links {
		if l.ContentType != nil && *l.ContentType == "application/pdf" {
			return l.Href
		}
	}
	return a.PDFURL()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
