package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the model answers with no content
var ErrEmptyResponse = errors.New("empty model response")

// Provider defines the interface for chat completion endpoints
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends one user turn and returns the model's answer
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Request is a single-turn chat request
type Request struct {
	// Model is the provider-specific model name
	Model string

	// Prompt is the user instruction
	Prompt string

	// ImageURL is an optional image attachment (https or data URL)
	ImageURL string

	// MaxTokens limits the response length (0 uses the provider default)
	MaxTokens int
}

// Response is the model's answer
type Response struct {
	Content    Content
	Model      string
	TokensUsed int
}

// Text returns the answer flattened to a single string
func (r *Response) Text() string {
	if r == nil || r.Content == nil {
		return ""
	}
	return r.Content.Text()
}

// Config holds provider configuration
type Config struct {
	// Provider name: "openrouter", "openai", "ollama"
	Provider string

	// APIKey for the endpoint (not needed for ollama)
	APIKey string

	// BaseURL overrides the provider's default endpoint
	BaseURL string

	// Timeout for a single API request
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// MaxRetries bounds retries of transient failures
	MaxRetries int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:   "openrouter",
		Timeout:    120,
		MaxTokens:  1000,
		MaxRetries: 3,
	}
}
