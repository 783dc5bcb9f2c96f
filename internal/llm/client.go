// Package llm wraps the Anthropic completion endpoint behind a small
// interface the orchestration loop can stub in tests.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// maxTokens bounds a single completion response.
const maxTokens = 4096

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// Completion is the model's response to one request: assistant text plus
// zero or more tool invocation requests. The loop is done when ToolCalls
// is empty.
type Completion struct {
	Text      string
	ToolCalls []ToolCall
}

// Completer is the completion endpoint contract consumed by the
// orchestration loop.
type Completer interface {
	Complete(ctx context.Context, system string, messages []anthropic.MessageParam, tools []anthropic.ToolUnionParam) (Completion, error)
}

// ClientConfig holds settings for creating a Client.
type ClientConfig struct {
	APIKey string // falls back to ANTHROPIC_API_KEY
	Model  string
}

// Client implements Completer against the Anthropic API.
type Client struct {
	inner anthropic.Client
	model anthropic.Model
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("llm: api key is required (set ANTHROPIC_API_KEY)")
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}

	return &Client{
		inner: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model: model,
	}, nil
}

// Complete issues one completion request and flattens the response content
// into text plus tool calls.
func (c *Client) Complete(ctx context.Context, system string, messages []anthropic.MessageParam, tools []anthropic.ToolUnionParam) (Completion, error) {
	resp, err := c.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: messages,
		Tools:    tools,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("llm: completion call: %w", err)
	}

	var out Completion
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Text += variant.Text
		case anthropic.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:    variant.ID,
				Name:  variant.Name,
				Input: variant.Input,
			})
		}
	}
	return out, nil
}
