package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

var _ model.ChatModel = (*OpenAIChatModel)(nil)

// OpenAIConfig configures the chat-completions client.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float32
	TopP        *float32
	MaxTokens   *int

	// RequestOptions are appended after the options derived above.
	RequestOptions []option.RequestOption
}

// OpenAIChatModel adapts the OpenAI chat-completions API to eino's ChatModel.
type OpenAIChatModel struct {
	client      openai.Client
	model       string
	temperature *float32
	topP        *float32
	maxTokens   *int
}

// NewOpenAIChatModel creates the client. No timeout is set; requests are
// bounded only by the caller's context.
func NewOpenAIChatModel(cfg OpenAIConfig) *OpenAIChatModel {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, cfg.RequestOptions...)

	return &OpenAIChatModel{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxTokens:   cfg.MaxTokens,
	}
}

// Generate returns the whole completion in one message.
func (m *OpenAIChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	resp, err := m.client.Chat.Completions.New(ctx, m.buildParams(input, opts...))
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai completion: no choices")
	}
	return schema.AssistantMessage(resp.Choices[0].Message.Content, nil), nil
}

// Stream issues a streamed completion. The first chunk is awaited before
// returning so that connection and authentication failures surface here
// rather than on the first Recv. Each chunk's choices[0].delta.content
// becomes one assistant message; empty deltas are passed through.
func (m *OpenAIChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, m.buildParams(input, opts...))

	if !stream.Next() {
		err := stream.Err()
		_ = stream.Close()
		if err != nil {
			return nil, fmt.Errorf("openai stream: %w", err)
		}
		return schema.StreamReaderFromArray([]*schema.Message{}), nil
	}

	reader, writer := schema.Pipe[*schema.Message](0)
	go func() {
		defer writer.Close()
		defer stream.Close()

		if closed := writer.Send(chunkMessage(stream.Current()), nil); closed {
			return
		}
		for stream.Next() {
			if closed := writer.Send(chunkMessage(stream.Current()), nil); closed {
				return
			}
		}
		if err := stream.Err(); err != nil {
			writer.Send(nil, fmt.Errorf("openai stream: %w", err))
		}
	}()

	return reader, nil
}

// BindTools is not supported; personas never call tools.
func (m *OpenAIChatModel) BindTools(_ []*schema.ToolInfo) error {
	return errors.New("openai chat model: tools are not supported")
}

func (m *OpenAIChatModel) buildParams(input []*schema.Message, opts ...model.Option) openai.ChatCompletionNewParams {
	modelName := m.model
	options := model.GetCommonOptions(&model.Options{
		Model:       &modelName,
		Temperature: m.temperature,
		TopP:        m.topP,
		MaxTokens:   m.maxTokens,
	}, opts...)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(*options.Model),
		Messages: toOpenAIMessages(input),
	}
	if options.Temperature != nil {
		params.Temperature = openai.Float(float64(*options.Temperature))
	}
	if options.TopP != nil {
		params.TopP = openai.Float(float64(*options.TopP))
	}
	if options.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*options.MaxTokens))
	}
	return params
}

func toOpenAIMessages(input []*schema.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			out = append(out, openai.SystemMessage(msg.Content))
		case schema.Assistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

func chunkMessage(chunk openai.ChatCompletionChunk) *schema.Message {
	msg := &schema.Message{Role: schema.Assistant}
	if len(chunk.Choices) > 0 {
		msg.Content = chunk.Choices[0].Delta.Content
	}
	return msg
}
