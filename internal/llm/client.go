// Package llm provides HTTP clients for chat-completion providers.
//
// All agents depend on the Client interface, never a concrete provider,
// so tests can substitute scripted fakes and the provider can be switched
// by configuration alone.
package llm

import (
	"context"
	"fmt"
	"time"

	"planforge/internal/config"
)

// Client is the minimal completion interface agents depend on.
type Client interface {
	// Complete sends a prompt and returns the completion.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteWithSystem sends a prompt with a system message.
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// New builds a Client from configuration.
func New(cfg config.LLMConfig) (Client, error) {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		timeout = 0 // provider default
	}
	switch cfg.Provider {
	case "openai", "zai":
		return NewOpenAIClientWithConfig(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: timeout,
		}), nil
	case "anthropic":
		c := NewAnthropicClient(cfg.APIKey)
		if cfg.BaseURL != "" {
			c.baseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			c.model = cfg.Model
		}
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
