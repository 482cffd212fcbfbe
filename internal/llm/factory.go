package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/crimestats/internal/model"
)

// Default endpoints for the supported providers
const (
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	OllamaBaseURL     = "http://localhost:11434/v1"
)

// NewProvider creates a new provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openrouter", "":
		if config.BaseURL == "" {
			config.BaseURL = OpenRouterBaseURL
		}
		return NewOpenAIProvider("openrouter", config)

	case "openai":
		return NewOpenAIProvider("openai", config)

	case "ollama":
		if config.BaseURL == "" {
			config.BaseURL = OllamaBaseURL
		}
		if config.APIKey == "" {
			// Ollama ignores the key but the client requires one
			config.APIKey = "ollama"
		}
		return NewOpenAIProvider("ollama", config)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openrouter, openai, ollama)", config.Provider)
	}
}

// ConfigFromModel converts the application config to llm.Config
func ConfigFromModel(llmConfig model.LLMConfig, httpConfig model.HTTPConfig) Config {
	return Config{
		Provider:   llmConfig.Provider,
		APIKey:     llmConfig.APIKey,
		BaseURL:    llmConfig.BaseURL,
		Timeout:    llmConfig.Timeout,
		MaxTokens:  llmConfig.MaxTokens,
		MaxRetries: llmConfig.MaxRetries,
		HTTPProxy:  httpConfig.HTTPProxy,
		HTTPSProxy: httpConfig.HTTPSProxy,
		NoProxy:    httpConfig.NoProxy,
	}
}
