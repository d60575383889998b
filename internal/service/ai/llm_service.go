package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/palona/shopchat/backend/internal/config"
)

// Completer runs a single system + user exchange against a chat model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Service answers intent and chat questions with a language model, the way
// the recommendation backend does.
type Service struct {
	completer Completer
	logger    zerolog.Logger
}

// NewService creates the service for the configured provider.
func NewService(ctx context.Context, cfg config.AIConfig, logger zerolog.Logger) (*Service, error) {
	var (
		completer Completer
		err       error
	)
	switch cfg.Provider {
	case config.ProviderArk:
		completer, err = newArkCompleter(ctx, cfg)
	case config.ProviderOpenAI:
		completer, err = newOpenAICompleter(cfg)
	default:
		return nil, fmt.Errorf("no language model provider configured")
	}
	if err != nil {
		return nil, err
	}
	return NewServiceWithCompleter(completer, logger), nil
}

// NewServiceWithCompleter wraps an existing completer.
func NewServiceWithCompleter(completer Completer, logger zerolog.Logger) *Service {
	return &Service{
		completer: completer,
		logger:    logger.With().Str("component", "ai").Logger(),
	}
}

// ClassifyIntent reports whether the message is about shopping for a product.
// Model failures classify as "not a product query".
func (s *Service) ClassifyIntent(ctx context.Context, message string) (bool, error) {
	reply, err := s.completer.Complete(ctx, classifierPrompt, message)
	if err != nil {
		s.logger.Warn().Err(err).Msg("intent classification failed")
		return false, nil
	}

	answer := reply
	if idx := strings.LastIndex(reply, "Answer:"); idx >= 0 {
		answer = reply[idx+len("Answer:"):]
	}
	isProduct := strings.Contains(strings.ToUpper(strings.TrimSpace(answer)), "YES")

	s.logger.Debug().Bool("is_product", isProduct).Str("answer", strings.TrimSpace(answer)).Msg("intent classified")
	return isProduct, nil
}

// Chat returns the assistant's reply. An empty reply means the model could
// not answer.
func (s *Service) Chat(ctx context.Context, message string) (string, error) {
	reply, err := s.completer.Complete(ctx, BuildAssistantPrompt(DefaultAssistant()), message)
	if err != nil {
		s.logger.Warn().Err(err).Msg("chat completion failed")
		return "", nil
	}

	if idx := strings.LastIndex(reply, "Palona:"); idx >= 0 {
		reply = reply[idx+len("Palona:"):]
	}
	return strings.TrimSpace(reply), nil
}

type arkCompleter struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

func newArkCompleter(ctx context.Context, cfg config.AIConfig) (*arkCompleter, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return newChainCompleter(ctx, chatModel)
}

func newChainCompleter(ctx context.Context, chatModel model.ChatModel) (*arkCompleter, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	return &arkCompleter{chain: runnable}, nil
}

func (c *arkCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	response, err := c.chain.Invoke(ctx, map[string]any{
		"system": system,
		"query":  user,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	return response.Content, nil
}
