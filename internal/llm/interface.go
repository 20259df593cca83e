package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// Client is the one openai.Client call the Completer depends on, kept as an
// interface so tests can script completion outcomes.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}
