package generate

import (
	"context"
	"net/http"
	"strings"
)

// OpenAIName is the provider label for OpenAI-compatible endpoints,
// including the Hugging Face router.
const OpenAIName = "OpenAI/HF"

// OpenAI calls an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAI returns an OpenAI-compatible provider for baseURL
// (for example https://api.openai.com/v1).
func NewOpenAI(apiKey, model, baseURL string, client *http.Client) *OpenAI {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &OpenAI{apiKey: apiKey, model: model, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Name implements TextGenerator.
func (o *OpenAI) Name() string { return OpenAIName }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate implements TextGenerator.
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	body := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens: req.MaxTokens,
	}

	var resp chatResponse
	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}
	if err := postJSON(ctx, o.client, OpenAIName, o.baseURL+"/chat/completions", headers, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
