package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/palona/shopchat/backend/internal/config"
)

type openAICompleter struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func newOpenAICompleter(cfg config.AIConfig) (*openAICompleter, error) {
	if cfg.Provider != config.ProviderOpenAI || !cfg.Enabled() {
		return nil, fmt.Errorf("openai credentials missing: set OPENAI_API_KEY and OPENAI_MODEL")
	}

	clientCfg := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}

	c := &openAICompleter{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.OpenAIModel,
		temperature: 0.7,
		maxTokens:   200,
	}
	if cfg.Temperature != nil {
		c.temperature = float32(*cfg.Temperature)
	}
	if cfg.MaxTokens != nil && *cfg.MaxTokens > 0 {
		c.maxTokens = *cfg.MaxTokens
	}
	return c, nil
}

func (c *openAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
