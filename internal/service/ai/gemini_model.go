package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

var _ model.ChatModel = (*GeminiChatModel)(nil)

// GeminiConfig configures the Gemini API client.
type GeminiConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float32
	TopP        *float32
	MaxTokens   *int
}

// GeminiChatModel adapts genai's GenerateContentStream to eino's ChatModel.
type GeminiChatModel struct {
	client      *genai.Client
	model       string
	temperature *float32
	topP        *float32
	maxTokens   *int
}

// NewGeminiChatModel creates a Gemini chat model using the official SDK.
func NewGeminiChatModel(ctx context.Context, cfg GeminiConfig) (*GeminiChatModel, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &GeminiChatModel{
		client:      c,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Generate returns the whole completion in one message.
func (g *GeminiChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	modelName, contents, cfg := g.buildRequest(input, opts...)
	resp, err := g.client.Models.GenerateContent(ctx, modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	return schema.AssistantMessage(resp.Text(), nil), nil
}

// Stream relays each streamed response's text as one assistant message.
func (g *GeminiChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	modelName, contents, cfg := g.buildRequest(input, opts...)
	if len(contents) == 0 {
		return nil, errors.New("gemini: no messages")
	}

	reader, writer := schema.Pipe[*schema.Message](0)
	go func() {
		defer writer.Close()
		for resp, err := range g.client.Models.GenerateContentStream(ctx, modelName, contents, cfg) {
			if err != nil {
				writer.Send(nil, fmt.Errorf("gemini stream: %w", err))
				return
			}
			msg := &schema.Message{Role: schema.Assistant}
			if resp != nil {
				msg.Content = resp.Text()
			}
			if closed := writer.Send(msg, nil); closed {
				return
			}
		}
	}()
	return reader, nil
}

// BindTools is not supported; personas never call tools.
func (g *GeminiChatModel) BindTools(_ []*schema.ToolInfo) error {
	return errors.New("gemini chat model: tools are not supported")
}

func (g *GeminiChatModel) buildRequest(input []*schema.Message, opts ...model.Option) (string, []*genai.Content, *genai.GenerateContentConfig) {
	modelName := g.model
	options := model.GetCommonOptions(&model.Options{
		Model:       &modelName,
		Temperature: g.temperature,
		TopP:        g.topP,
		MaxTokens:   g.maxTokens,
	}, opts...)

	cfg := &genai.GenerateContentConfig{
		Temperature: options.Temperature,
		TopP:        options.TopP,
	}
	if options.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*options.MaxTokens)
	}

	var system []string
	contents := make([]*genai.Content, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		role := genai.RoleUser
		switch msg.Role {
		case schema.System:
			// Gemini takes system text through SystemInstruction, not history.
			system = append(system, msg.Content)
			continue
		case schema.Assistant:
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}},
		}
	}

	return *options.Model, contents, cfg
}
