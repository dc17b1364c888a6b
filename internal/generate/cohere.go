package generate

import (
	"context"
	"net/http"
	"strings"
)

const (
	// CohereBaseURL is the Cohere v1 API endpoint.
	CohereBaseURL = "https://api.cohere.ai/v1"
	// CohereName is the provider label.
	CohereName = "Cohere"
)

// Cohere calls the Cohere chat API.
type Cohere struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewCohere returns a Cohere provider. baseURL may be empty.
func NewCohere(apiKey, model, baseURL string, client *http.Client) *Cohere {
	if baseURL == "" {
		baseURL = CohereBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Cohere{apiKey: apiKey, model: model, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Name implements TextGenerator.
func (c *Cohere) Name() string { return CohereName }

type cohereRequest struct {
	Message   string `json:"message"`
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

type cohereResponse struct {
	Text string `json:"text"`
}

// Generate implements TextGenerator. The system prompt is folded into
// the message.
func (c *Cohere) Generate(ctx context.Context, req Request) (string, error) {
	body := cohereRequest{Message: req.fullPrompt(), Model: c.model, MaxTokens: req.MaxTokens}

	var resp cohereResponse
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := postJSON(ctx, c.client, CohereName, c.baseURL+"/chat", headers, body, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}
