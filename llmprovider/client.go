// Package llmprovider adapts iris LLM providers to Merlin's completion
// interface. The default provider is a local Ollama daemon; other registered
// iris providers work the same way when an API key is supplied.
package llmprovider

import (
	"context"
	"fmt"
	"strings"

	iriscore "github.com/petal-labs/iris/core"
	"github.com/petal-labs/iris/providers"

	// Auto-register common providers.
	_ "github.com/petal-labs/iris/providers/anthropic"
	_ "github.com/petal-labs/iris/providers/ollama"
	_ "github.com/petal-labs/iris/providers/openai"

	"github.com/merlin-labs/merlin/core"
)

const (
	// DefaultProvider is the provider used when none is configured.
	DefaultProvider = "ollama"
	// DefaultModel is the model used when none is configured.
	DefaultModel = "llama3.1:latest"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client wraps an iris provider pinned to one model.
type Client struct {
	provider iriscore.Provider
	model    string
}

// New creates a client for the named provider. Empty name and model fall
// back to the Ollama defaults; the API key may be empty for local providers.
func New(providerName, apiKey, model string) (*Client, error) {
	if providerName == "" {
		providerName = DefaultProvider
	}
	if model == "" {
		model = DefaultModel
	}
	provider, err := providers.Create(providerName, apiKey)
	if err != nil {
		return nil, fmt.Errorf("creating provider %q: %w", providerName, err)
	}
	return &Client{provider: provider, model: model}, nil
}

// Model returns the model the client is pinned to.
func (c *Client) Model() string {
	return c.model
}

// Complete sends a single-prompt completion request.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, "", []Message{{Role: "user", Content: prompt}})
}

// Chat sends a multi-turn exchange with an optional system prompt and
// returns the assistant's text output.
func (c *Client) Chat(ctx context.Context, system string, msgs []Message) (string, error) {
	messages := make([]iriscore.Message, 0, len(msgs)+1)
	if system != "" {
		messages = append(messages, iriscore.Message{
			Role:    iriscore.RoleSystem,
			Content: system,
		})
	}
	for _, m := range msgs {
		messages = append(messages, iriscore.Message{
			Role:    toIrisRole(m.Role),
			Content: m.Content,
		})
	}

	resp, err := c.provider.Chat(ctx, &iriscore.ChatRequest{
		Model:    iriscore.ModelID(c.model),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("provider chat failed: %w", err)
	}
	return strings.TrimSpace(resp.Output), nil
}

// toIrisRole converts a string role to an iris Role constant.
func toIrisRole(role string) iriscore.Role {
	switch role {
	case "system":
		return iriscore.RoleSystem
	case "assistant":
		return iriscore.RoleAssistant
	case "tool":
		return iriscore.RoleTool
	default:
		return iriscore.RoleUser
	}
}

// Compile-time interface check.
var _ core.LLMClient = (*Client)(nil)
