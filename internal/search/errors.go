package search

import (
	"errors"
	"fmt"
)

// Common errors returned by the search clients.
var (
	// ErrEmptyTopic indicates a blank search topic.
	ErrEmptyTopic = errors.New("topic cannot be empty")

	// ErrNoTopics is returned when no usable topic was supplied.
	ErrNoTopics = errors.New("no topics given")

	// ErrAuthError indicates a missing or invalid API key.
	ErrAuthError = errors.New("search authentication error")

	// ErrRateLimited indicates the upstream rate limit has been exceeded.
	ErrRateLimited = errors.New("search rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with search API")

	// ErrInvalidResponse indicates an unexpected API response.
	ErrInvalidResponse = errors.New("invalid response from search API")
)

// APIError represents a non-success HTTP response from a search API.
type APIError struct {
	Source     string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// IsAuthError returns true if the error indicates an authentication problem.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrAuthError) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
	}
	return false
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// checkHTTPStatus returns an error if the status code indicates a problem.
func checkHTTPStatus(source string, status int) error {
	switch {
	case status == 401 || status == 403:
		return fmt.Errorf("%w: %s status %d", ErrAuthError, source, status)
	case status == 429:
		return fmt.Errorf("%w: %s status %d", ErrRateLimited, source, status)
	case status >= 400:
		return &APIError{Source: source, StatusCode: status, Message: fmt.Sprintf("HTTP %d", status)}
	}
	return nil
}
