package llm

import (
	"github.com/sashabaranov/go-openai"

	"github.com/storeloop/danbot/internal/config"
)

// NewClient builds the OpenAI client from the configured credentials. An
// empty base URL keeps the SDK default, a non-empty one points the relay at a
// compatible proxy.
func NewClient(cfg config.LLMConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return openai.NewClientWithConfig(clientCfg)
}
