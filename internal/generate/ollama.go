package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/matsen/litsynth/internal/config"
)

const (
	// DefaultOllamaURL is the default Ollama API endpoint.
	DefaultOllamaURL = "http://localhost:11434"

	// OllamaName is the provider label.
	OllamaName = "Ollama"

	// ollamaTimeout is longer than DefaultTimeout; local models on CPU are slow.
	ollamaTimeout = 2 * time.Minute

	// apiPathTags is the Ollama API endpoint for listing models.
	apiPathTags = "/api/tags"

	// apiPathGenerate is the Ollama API endpoint for completions.
	apiPathGenerate = "/api/generate"
)

// Ollama generates text with a local Ollama server.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// OllamaOption configures an Ollama provider.
type OllamaOption func(*Ollama)

// WithOllamaURL sets the Ollama API base URL.
func WithOllamaURL(url string) OllamaOption {
	return func(o *Ollama) {
		if url != "" {
			o.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithOllamaModel sets the model.
func WithOllamaModel(model string) OllamaOption {
	return func(o *Ollama) {
		if model != "" {
			o.model = model
		}
	}
}

// WithOllamaTimeout sets the HTTP client timeout.
func WithOllamaTimeout(timeout time.Duration) OllamaOption {
	return func(o *Ollama) {
		o.client.Timeout = timeout
	}
}

// NewOllama creates an Ollama provider.
func NewOllama(opts ...OllamaOption) *Ollama {
	o := &Ollama{
		baseURL: DefaultOllamaURL,
		model:   config.DefaultOllamaModel,
		client:  &http.Client{Timeout: ollamaTimeout},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name implements TextGenerator.
func (o *Ollama) Name() string { return OllamaName }

// Model returns the configured model name.
func (o *Ollama) Model() string { return o.model }

// Generate implements TextGenerator.
func (o *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	body := ollamaGenerateRequest{
		Model:  o.model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: false,
	}
	if req.MaxTokens > 0 {
		body.Options = &ollamaOptions{NumPredict: req.MaxTokens}
	}

	var resp ollamaGenerateResponse
	if err := postJSON(ctx, o.client, OllamaName, o.baseURL+apiPathGenerate, nil, body, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// IsAvailable checks if Ollama is running and accessible.
func (o *Ollama) IsAvailable(ctx context.Context) error {
	_, err := o.tags(ctx)
	if err != nil {
		return fmt.Errorf("ollama is not running: %w", err)
	}
	return nil
}

// HasModel checks if the configured model is available in Ollama.
func (o *Ollama) HasModel(ctx context.Context) (bool, error) {
	tags, err := o.tags(ctx)
	if err != nil {
		return false, fmt.Errorf("checking models: %w", err)
	}
	for _, m := range tags.Models {
		if m.Name == o.model || strings.TrimSuffix(m.Name, ":latest") == o.model {
			return true, nil
		}
	}
	return false, nil
}

func (o *Ollama) tags(ctx context.Context) (*ollamaTagsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+apiPathTags, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(OllamaName, resp)
	}

	var result ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &result, nil
}

// ollamaGenerateRequest is the request body for the Ollama generate API.
type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

// ollamaGenerateResponse is the non-streaming response of the generate API.
type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// ollamaTagsResponse is the response from the Ollama tags API.
type ollamaTagsResponse struct {
	Models []ollamaModel `json:"models"`
}

// ollamaModel represents a model in the Ollama tags response.
type ollamaModel struct {
	Name string `json:"name"`
}
