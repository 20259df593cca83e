// Package prompt builds the message list sent to the completion service.
package prompt

import (
	"github.com/sashabaranov/go-openai"

	"github.com/storeloop/danbot/internal/session"
)

// Assemble produces the completion request messages: the persona as a system
// entry, followed by the last 2*maxPairs history entries in their stored
// order. Pure function, the input history is never mutated.
func Assemble(persona string, history []session.Entry, maxPairs int) []openai.ChatCompletionMessage {
	if limit := 2 * maxPairs; len(history) > limit {
		history = history[len(history)-limit:]
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: persona,
	})
	for _, e := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(e.Role),
			Content: e.Content,
		})
	}
	return messages
}
