package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/storeloop/danbot/internal/config"
	"github.com/storeloop/danbot/internal/logger"
)

// CompletionError reports that the completion call errored, timed out, or
// returned no usable content. Callers match it with errors.As and run their
// own compensation; no retry happens here.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed: %v", e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Completer wraps the OpenAI client with the configured request parameters
// and a hard timeout.
type Completer struct {
	client Client
	cfg    config.LLMConfig
}

// NewCompleter builds a Completer around client using cfg's model,
// temperature, token cap and timeout.
func NewCompleter(client Client, cfg config.LLMConfig) *Completer {
	return &Completer{client: client, cfg: cfg}
}

// Complete sends messages to the completion service and returns the
// generated text with surrounding whitespace trimmed.
func (c *Completer) Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		logger.L.Error("completion call failed", "error", err)
		return "", &CompletionError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &CompletionError{Err: errors.New("response contained no choices")}
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", &CompletionError{Err: errors.New("response contained no content")}
	}
	return text, nil
}
