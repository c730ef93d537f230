package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/patientsim/patient-sim/internal/config"
	"github.com/patientsim/patient-sim/internal/model/chat"
)

// Service runs the completion chain for the configured provider.
type Service struct {
	provider  string
	modelName string
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService builds the provider chat model from cfg and compiles the chain.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg.Provider, cfg.Model)
}

// NewServiceWithModel compiles the chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel, provider, modelName string) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system", true),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		provider:  provider,
		modelName: modelName,
		chain:     runnable,
	}, nil
}

// Provider returns the configured provider name, used as a metrics label.
func (s *Service) Provider() string {
	return s.provider
}

// Model returns the model identifier requested from the provider.
func (s *Service) Model() string {
	return s.modelName
}

// StreamReply requests a streamed completion for query. An empty system
// prompt and nil history produce a single-turn request containing only the
// user message. The returned reader yields fragments in arrival order and
// must be closed by the caller.
func (s *Service) StreamReply(ctx context.Context, system string, history []chat.Message, query string) (*schema.StreamReader[*schema.Message], error) {
	input := buildChainInput(system, history, query)

	stream, err := s.chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	return stream, nil
}

func buildChainInput(system string, history []chat.Message, query string) map[string]any {
	var systemMsgs []*schema.Message
	if system != "" {
		systemMsgs = []*schema.Message{schema.SystemMessage(system)}
	}

	return map[string]any{
		"system":  systemMsgs,
		"history": buildHistoryMessages(history),
		"query":   query,
	}
}

func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
