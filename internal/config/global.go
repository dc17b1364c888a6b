// Package config handles global configuration and workspace layout.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// GlobalConfig represents configuration stored in ~/.config/lsy/config.yml.
type GlobalConfig struct {
	WorkspacePath string `yaml:"workspace_path,omitempty"`

	S2APIKey string `yaml:"s2_api_key,omitempty"`

	OpenAIAPIKey  string `yaml:"openai_api_key,omitempty"`
	OpenAIBaseURL string `yaml:"openai_base_url,omitempty"`
	GPTModel      string `yaml:"gpt_model,omitempty"`
	GeminiAPIKey  string `yaml:"gemini_api_key,omitempty"`
	GeminiModel   string `yaml:"gemini_model,omitempty"`
	CohereAPIKey  string `yaml:"cohere_api_key,omitempty"`
	CohereModel   string `yaml:"cohere_model,omitempty"`
	OllamaURL     string `yaml:"ollama_url,omitempty"`
	OllamaModel   string `yaml:"ollama_model,omitempty"`
	ClaudeModel   string `yaml:"claude_model,omitempty"` // Enables the claude CLI provider when set

	SearchLimit   int           `yaml:"search_limit,omitempty"`
	SearchTimeout time.Duration `yaml:"search_timeout,omitempty"`
	CacheTTL      time.Duration `yaml:"cache_ttl,omitempty"`
	LogLevel      string        `yaml:"log_level,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "lsy"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// Defaults applied by Resolve.
const (
	DefaultSearchLimit   = 3
	DefaultSearchTimeout = 10 * time.Second
	DefaultCacheTTL      = 24 * time.Hour
	DefaultGPTModel      = "meta-llama/Llama-3.1-8B-Instruct"
	DefaultGeminiModel   = "gemini-1.5-flash"
	DefaultCohereModel   = "command-r-08-2024"
	DefaultOllamaModel   = "llama3.2"
	DefaultLogLevel      = "info"

	// HFRouterURL is used as the OpenAI base URL for Hugging Face tokens.
	HFRouterURL = "https://router.huggingface.co/v1"
	// OpenAIURL is the default OpenAI-compatible base URL.
	OpenAIURL = "https://api.openai.com/v1"
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/lsy/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file.
// Returns an empty config (not an error) if the file doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	path := GlobalConfigPath()
	if path == "" {
		return &GlobalConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GlobalConfig{}, nil
		}
		return nil, fmt.Errorf("reading global config: %w", err)
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing global config: %w", err)
	}

	if cfg.WorkspacePath != "" {
		cfg.WorkspacePath = ExpandPath(cfg.WorkspacePath)
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// LoadDotEnv loads .env files from the workspace and the current
// directory. Variables already set in the environment win.
func LoadDotEnv(workspace string) {
	if workspace != "" {
		_ = godotenv.Load(filepath.Join(workspace, ".env"))
	}
	_ = godotenv.Load()
}

// Resolve returns a copy of the config with environment overrides and
// defaults applied. getenv is usually os.Getenv.
func (c GlobalConfig) Resolve(getenv func(string) string) GlobalConfig {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&c.S2APIKey, "SEMANTIC_SCHOLAR_API_KEY")
	override(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	override(&c.OpenAIBaseURL, "OPENAI_BASE_URL")
	override(&c.GPTModel, "GPT_MODEL")
	override(&c.GeminiAPIKey, "GEMINI_API_KEY")
	override(&c.GeminiModel, "GEMINI_MODEL")
	override(&c.CohereAPIKey, "COHERE_API_KEY")
	override(&c.CohereModel, "COHERE_MODEL")
	override(&c.OllamaURL, "OLLAMA_HOST")
	override(&c.OllamaModel, "OLLAMA_MODEL")
	override(&c.ClaudeModel, "CLAUDE_MODEL")
	override(&c.LogLevel, "LSY_LOG_LEVEL")
	override(&c.WorkspacePath, "LSY_WORKSPACE")

	if v := getenv("LSY_SEARCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.SearchLimit = n
		}
	}

	if c.SearchLimit <= 0 {
		c.SearchLimit = DefaultSearchLimit
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = DefaultSearchTimeout
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.GPTModel == "" {
		c.GPTModel = DefaultGPTModel
	}
	if c.GeminiModel == "" {
		c.GeminiModel = DefaultGeminiModel
	}
	if c.CohereModel == "" {
		c.CohereModel = DefaultCohereModel
	}
	if c.OllamaModel == "" {
		c.OllamaModel = DefaultOllamaModel
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.OpenAIBaseURL == "" && c.OpenAIAPIKey != "" {
		if strings.HasPrefix(c.OpenAIAPIKey, "hf_") {
			c.OpenAIBaseURL = HFRouterURL
		} else {
			c.OpenAIBaseURL = OpenAIURL
		}
	}
	return c
}

// Load reads the global config, loads .env files for workspace, and
// returns the resolved configuration.
func Load(workspace string) (GlobalConfig, error) {
	LoadDotEnv(workspace)
	cfg, err := LoadGlobalConfig()
	if err != nil {
		return GlobalConfig{}, err
	}
	return cfg.Resolve(os.Getenv), nil
}

// Redacted returns a copy safe for display, with API keys masked.
func (c GlobalConfig) Redacted() GlobalConfig {
	c.S2APIKey = mask(c.S2APIKey)
	c.OpenAIAPIKey = mask(c.OpenAIAPIKey)
	c.GeminiAPIKey = mask(c.GeminiAPIKey)
	c.CohereAPIKey = mask(c.CohereAPIKey)
	return c
}

func mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****"
}

// HelpfulConfigMessage returns a hint for creating the global config.
func HelpfulConfigMessage() string {
	configPath := GlobalConfigPath()
	return fmt.Sprintf(`Tip: Create %s to set defaults:
  mkdir -p %s
  echo 'workspace_path: /path/to/workspace' > %s`,
		configPath,
		filepath.Dir(configPath),
		configPath)
}
