// Package generate produces text with a prioritized chain of LLM
// providers, retrying transient failures with exponential backoff.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TextGenerator is one text-generation provider.
type TextGenerator interface {
	// Name is the provider label reported in results.
	Name() string
	// Generate returns the completion for req.
	Generate(ctx context.Context, req Request) (string, error)
}

// Request is a single generation request.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

// fullPrompt joins the system and user prompts for providers without a
// separate system role.
func (r Request) fullPrompt() string {
	if r.System == "" {
		return r.Prompt
	}
	return r.System + "\n\n" + r.Prompt
}

// Result status values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Result is the tagged outcome of a chain generation.
type Result struct {
	Status   string `json:"status"`
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Error    string `json:"error,omitempty"`
}

// OK reports whether generation succeeded.
func (r Result) OK() bool { return r.Status == StatusSuccess }

// ErrEmptyResponse is returned when a provider answers without text.
var ErrEmptyResponse = errors.New("empty response")

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// WarmupError is returned when a hosted model is still loading (HTTP 503).
type WarmupError struct {
	Provider string
	Message  string
}

func (e *WarmupError) Error() string {
	return fmt.Sprintf("%s model warming up: %s", e.Provider, e.Message)
}

// IsWarmup reports whether err is a WarmupError.
func IsWarmup(err error) bool {
	var w *WarmupError
	return errors.As(err, &w)
}

// IsRetryable reports whether err is a transient server error (5xx or an
// INTERNAL status) worth retrying with backoff.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || strings.Contains(strings.ToUpper(apiErr.Message), "INTERNAL")
	}
	return false
}

// Backoff is an exponential retry schedule.
type Backoff struct {
	Base     time.Duration // Delay after the first failure
	Attempts int           // Attempts per provider
	Warmup   time.Duration // Delay after a WarmupError
}

// DefaultBackoff waits 2s, 4s, 8s and 15s for model warm-up.
var DefaultBackoff = Backoff{Base: 2 * time.Second, Attempts: 3, Warmup: 15 * time.Second}

// Delay returns the wait after failed attempt k (0-based): Base·2^k.
func (b Backoff) Delay(attempt int) time.Duration {
	return b.Base << attempt
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
