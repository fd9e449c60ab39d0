// internal/llm/anthropic.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"merchant-insights/internal/common/config"
	apperrors "merchant-insights/internal/common/errors"
)

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	client  *anthropic.Client
	model   anthropic.Model
	timeout time.Duration
}

func NewAnthropicClient(cfg config.AnthropicConfig) *AnthropicClient {
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return &AnthropicClient{
		client:  &client,
		model:   anthropic.Model(cfg.Model),
		timeout: config.GetDuration(cfg.Timeout),
	}
}

// Complete sends a single-turn user prompt and returns the response text.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperrors.NewCompletionTimeoutError()
		}
		return "", apperrors.NewCompletionAPIFailedError(err)
	}

	if len(resp.Content) == 0 {
		return "", apperrors.NewCompletionAPIFailedError(fmt.Errorf("empty completion response"))
	}

	return resp.Content[0].Text, nil
}

func (c *AnthropicClient) ModelName() string {
	return string(c.model)
}
