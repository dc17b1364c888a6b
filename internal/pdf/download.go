package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/matsen/litsynth/internal/reference"
)

const (
	// DefaultTimeout bounds a single download.
	DefaultTimeout = 30 * time.Second
	// MaxSize is the largest PDF kept on disk.
	MaxSize = 20 * 1024 * 1024
	// DownloadInterval spaces consecutive downloads.
	DownloadInterval = 300 * time.Millisecond

	maxTitleLen = 60
	maxSlugLen  = 40
)

var (
	// ErrUnexpectedContentType is returned when the server does not send a PDF.
	ErrUnexpectedContentType = errors.New("unexpected content type")
	// ErrTooLarge is returned when a PDF exceeds MaxSize.
	ErrTooLarge = errors.New("pdf too large")
)

var (
	nonTitleChars = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	nonSlugChars  = regexp.MustCompile(`[^\p{L}\p{N}_]`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// Downloader fetches open-access PDFs into dir/<topic_slug>/.
type Downloader struct {
	dir     string
	client  *http.Client
	limiter *rate.Limiter
	maxSize int64
	logger  *slog.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(d *Downloader) { d.client = hc }
}

// WithInterval sets the minimum spacing between downloads. Zero disables
// pacing.
func WithInterval(interval time.Duration) Option {
	return func(d *Downloader) {
		if interval <= 0 {
			d.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		d.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// WithMaxSize overrides MaxSize.
func WithMaxSize(n int64) Option {
	return func(d *Downloader) { d.maxSize = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Downloader) { d.logger = l }
}

// NewDownloader returns a Downloader storing files under dir.
func NewDownloader(dir string, opts ...Option) *Downloader {
	d := &Downloader{
		dir:     dir,
		client:  &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Every(DownloadInterval), 1),
		maxSize: MaxSize,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download saves the PDF of ref and records its path in ref.LocalPDF.
// It returns "" without error when the reference has no PDF link. A file
// that already exists is reused without contacting the server.
func (d *Downloader) Download(ctx context.Context, ref *reference.Reference, topicSlug string) (string, error) {
	if ref.PDFURL == "" {
		return "", nil
	}

	title := ref.Title
	if title == "" {
		title = "paper"
	}
	topicDir := filepath.Join(d.dir, topicSlug)
	dest := filepath.Join(topicDir, SafeTitle(title)+".pdf")

	if _, err := os.Stat(dest); err == nil {
		d.logger.Debug("pdf already downloaded", "path", dest)
		ref.LocalPDF = dest
		return dest, nil
	}

	if err := os.MkdirAll(topicDir, 0755); err != nil {
		return "", fmt.Errorf("creating pdf directory: %w", err)
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.PDFURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", ref.PDFURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("downloading %s: HTTP %d", ref.PDFURL, resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, "pdf") && !strings.Contains(ct, "octet-stream") {
		return "", fmt.Errorf("%w %q", ErrUnexpectedContentType, ct)
	}

	size, err := d.save(dest, resp.Body)
	if err != nil {
		os.Remove(dest)
		return "", err
	}

	d.logger.Info("pdf downloaded", "path", dest, "kb", size/1024)
	ref.LocalPDF = dest
	return dest, nil
}

func (d *Downloader) save(dest string, body io.Reader) (int64, error) {
	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", dest, err)
	}

	// Read one byte past the cap to detect oversized bodies.
	n, err := io.Copy(f, io.LimitReader(body, d.maxSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("writing %s: %w", dest, err)
	}
	if n > d.maxSize {
		return n, fmt.Errorf("%w (>%d MB)", ErrTooLarge, d.maxSize/1024/1024)
	}
	return n, nil
}

// DownloadAll downloads the PDFs of refs in place for one topic and
// returns how many files are available locally. Individual failures are
// logged and skipped.
func (d *Downloader) DownloadAll(ctx context.Context, topic string, refs []reference.Reference) (int, error) {
	slug := TopicSlug(topic)
	total := 0
	for i := range refs {
		path, err := d.Download(ctx, &refs[i], slug)
		if err != nil {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			d.logger.Warn("pdf download failed", "title", truncate(refs[i].Title, 40), "error", err)
			continue
		}
		if path != "" {
			total++
		}
	}
	return total, nil
}

// SafeTitle turns a paper title into a file name: punctuation removed,
// at most 60 characters, whitespace runs replaced by underscores.
func SafeTitle(title string) string {
	return FileStem(title, maxTitleLen)
}

// TopicSlug turns a topic into a directory name: every non-word
// character becomes an underscore, at most 40 characters.
func TopicSlug(topic string) string {
	return truncate(nonSlugChars.ReplaceAllString(topic, "_"), maxSlugLen)
}

// FileStem is SafeTitle with a caller-chosen length limit.
func FileStem(s string, limit int) string {
	s = strings.TrimSpace(truncate(nonTitleChars.ReplaceAllString(s, ""), limit))
	return whitespace.ReplaceAllString(s, "_")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
