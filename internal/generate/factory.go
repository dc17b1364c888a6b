package generate

import (
	"log/slog"
	"net/http"

	"github.com/matsen/litsynth/internal/config"
)

// Providers builds the enabled generators from cfg in priority order:
// Gemini, OpenAI/HF, Cohere, Ollama, Claude CLI. API providers need a
// key; Ollama needs ollama_url and the CLI needs claude_model.
func Providers(cfg config.GlobalConfig, client *http.Client) []TextGenerator {
	var gens []TextGenerator
	if cfg.GeminiAPIKey != "" {
		gens = append(gens, NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel, "", client))
	}
	if cfg.OpenAIAPIKey != "" {
		gens = append(gens, NewOpenAI(cfg.OpenAIAPIKey, cfg.GPTModel, cfg.OpenAIBaseURL, client))
	}
	if cfg.CohereAPIKey != "" {
		gens = append(gens, NewCohere(cfg.CohereAPIKey, cfg.CohereModel, "", client))
	}
	if cfg.OllamaURL != "" {
		gens = append(gens, NewOllama(WithOllamaURL(cfg.OllamaURL), WithOllamaModel(cfg.OllamaModel)))
	}
	if cfg.ClaudeModel != "" {
		gens = append(gens, NewClaudeCLI(cfg.ClaudeModel))
	}
	return gens
}

// FromConfig returns a chain over the providers enabled in cfg.
func FromConfig(cfg config.GlobalConfig, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	chain := NewChain(Providers(cfg, nil), WithChainLogger(logger))
	if chain.Ready() {
		logger.Info("text generation providers", "providers", chain.Names())
	} else {
		logger.Warn("no text generation providers configured, using template fallback")
	}
	return chain
}
