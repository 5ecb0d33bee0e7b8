package model

import (
	"context"
	"fmt"

	"openrag/config"
)

// GenerationError wraps any failure of the generation provider: network or
// timeout failure, non-2xx response, malformed body. The provider's message
// is preserved for diagnostics.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation (%s): %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Generator synthesizes an answer from a prompt. One interface, N provider
// implementations selected by configuration at startup.
type Generator interface {
	Name() string
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)
}

// NewGenerator builds the provider named by cfg.Provider.
func NewGenerator(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaGenerator(cfg.OllamaHost, cfg.Model, cfg.Timeout()), nil
	case "openai":
		return NewOpenAIGenerator(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.Model, cfg.Timeout()), nil
	case "anthropic":
		return NewAnthropicGenerator(cfg.AnthropicKey, cfg.Model, cfg.Timeout()), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}
