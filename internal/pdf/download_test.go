package pdf

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/matsen/litsynth/internal/reference"
)

func newTestDownloader(t *testing.T, opts ...Option) (*Downloader, string) {
	t.Helper()
	dir := t.TempDir()
	opts = append([]Option{WithInterval(0)}, opts...)
	return NewDownloader(dir, opts...), dir
}

func TestSafeTitle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Attention Is All You Need", "Attention_Is_All_You_Need"},
		{"BERT: Pre-training of Deep Bidirectional Transformers!", "BERT_Pre-training_of_Deep_Bidirectional_Transformers"},
		{"  padded   title ", "padded_title"},
		{strings.Repeat("a", 80), strings.Repeat("a", 60)},
	}
	for _, tt := range tests {
		if got := SafeTitle(tt.input); got != tt.want {
			t.Errorf("SafeTitle(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTopicSlug(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"machine learning", "machine_learning"},
		{"C++ & Rust", "C_____Rust"},
		{strings.Repeat("x", 50), strings.Repeat("x", 40)},
	}
	for _, tt := range tests {
		if got := TopicSlug(tt.input); got != tt.want {
			t.Errorf("TopicSlug(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDownload_NoURL(t *testing.T) {
	d, _ := newTestDownloader(t)
	ref := reference.Reference{Title: "No PDF"}
	path, err := d.Download(context.Background(), &ref, "topic")
	if err != nil || path != "" {
		t.Errorf("Download() = %q, %v; want empty, nil", path, err)
	}
	if ref.LocalPDF != "" {
		t.Errorf("LocalPDF = %q, want empty", ref.LocalPDF)
	}
}

func TestDownload_Success(t *testing.T) {
	body := "%PDF-1.4 fake"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	d, dir := newTestDownloader(t)
	ref := reference.Reference{Title: "Deep Nets: A Survey", PDFURL: srv.URL}
	path, err := d.Download(context.Background(), &ref, "deep_nets")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	want := filepath.Join(dir, "deep_nets", "Deep_Nets_A_Survey.pdf")
	if path != want || ref.LocalPDF != want {
		t.Errorf("path = %q, LocalPDF = %q, want %q", path, ref.LocalPDF, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != body {
		t.Errorf("file content = %q, want %q", data, body)
	}
}

func TestDownload_ReusesExistingFile(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
	}))
	defer srv.Close()

	d, dir := newTestDownloader(t)
	existing := filepath.Join(dir, "t", "Cached.pdf")
	os.MkdirAll(filepath.Dir(existing), 0755)
	os.WriteFile(existing, []byte("old"), 0644)

	ref := reference.Reference{Title: "Cached", PDFURL: srv.URL}
	path, err := d.Download(context.Background(), &ref, "t")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if path != existing {
		t.Errorf("path = %q, want %q", path, existing)
	}
	if hits.Load() != 0 {
		t.Errorf("server contacted %d times, want 0", hits.Load())
	}
}

func TestDownload_WrongContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>paywall</html>"))
	}))
	defer srv.Close()

	d, dir := newTestDownloader(t)
	ref := reference.Reference{Title: "Paywalled", PDFURL: srv.URL}
	_, err := d.Download(context.Background(), &ref, "t")
	if !errors.Is(err, ErrUnexpectedContentType) {
		t.Errorf("Download() error = %v, want ErrUnexpectedContentType", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "t", "Paywalled.pdf")); !os.IsNotExist(err) {
		t.Error("file should not exist")
	}
}

func TestDownload_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	d, dir := newTestDownloader(t, WithMaxSize(32))
	ref := reference.Reference{Title: "Huge", PDFURL: srv.URL}
	_, err := d.Download(context.Background(), &ref, "t")
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("Download() error = %v, want ErrTooLarge", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "t", "Huge.pdf")); !os.IsNotExist(err) {
		t.Error("partial file should be removed")
	}
	if ref.LocalPDF != "" {
		t.Errorf("LocalPDF = %q, want empty", ref.LocalPDF)
	}
}

func TestDownload_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d, _ := newTestDownloader(t)
	ref := reference.Reference{Title: "Missing", PDFURL: srv.URL}
	if _, err := d.Download(context.Background(), &ref, "t"); err == nil {
		t.Error("Download() should fail on 404")
	}
}

func TestDownloadAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	d, _ := newTestDownloader(t)
	refs := []reference.Reference{
		{Title: "One", PDFURL: srv.URL + "/one"},
		{Title: "Two", PDFURL: srv.URL + "/bad"},
		{Title: "Three"},
	}
	n, err := d.DownloadAll(context.Background(), "my topic", refs)
	if err != nil {
		t.Fatalf("DownloadAll() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DownloadAll() = %d, want 1", n)
	}
	if refs[0].LocalPDF == "" || refs[1].LocalPDF != "" {
		t.Errorf("LocalPDF = %q, %q", refs[0].LocalPDF, refs[1].LocalPDF)
	}
	if !strings.Contains(refs[0].LocalPDF, "my_topic") {
		t.Errorf("LocalPDF = %q, want topic slug dir", refs[0].LocalPDF)
	}
}

func TestExtractText_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pdf")
	os.WriteFile(path, []byte("not a pdf"), 0644)
	if _, err := ExtractText(path, 0); err == nil {
		t.Error("ExtractText() should fail for invalid PDF")
	}
}
