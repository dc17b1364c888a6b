package generate

import (
	"context"
	"net/http"
	"strings"
)

const (
	// GeminiBaseURL is the Generative Language API endpoint.
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// GeminiName is the provider label.
	GeminiName = "Google Gemini"
)

// Gemini calls the Gemini generateContent API.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGemini returns a Gemini provider. baseURL may be empty.
func NewGemini(apiKey, model, baseURL string, client *http.Client) *Gemini {
	if baseURL == "" {
		baseURL = GeminiBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Gemini{apiKey: apiKey, model: model, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Name implements TextGenerator.
func (g *Gemini) Name() string { return GeminiName }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate implements TextGenerator.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	body := geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: req.fullPrompt()}}}},
		GenerationConfig: geminiGenerationConfig{MaxOutputTokens: req.MaxTokens},
	}
	url := g.baseURL + "/models/" + g.model + ":generateContent"

	var resp geminiResponse
	if err := postJSON(ctx, g.client, GeminiName, url, map[string]string{"x-goog-api-key": g.apiKey}, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}
