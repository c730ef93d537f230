package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/patientsim/patient-sim/internal/config"
)

// NewChatModel builds the chat model for the configured provider.
func NewChatModel(ctx context.Context, cfg config.AIConfig) (model.ChatModel, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%s provider is missing model or credentials", cfg.Provider)
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIChatModel(openAIConfig(cfg)), nil
	case config.ProviderGemini:
		gemini, err := NewGeminiChatModel(ctx, geminiConfig(cfg))
		if err != nil {
			return nil, err
		}
		return gemini, nil
	case config.ProviderArk:
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     cfg.ArkBaseURL,
			Region:      cfg.ArkRegion,
			APIKey:      cfg.ArkAPIKey,
			AccessKey:   cfg.ArkAccessKey,
			SecretKey:   cfg.ArkSecretKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: toFloat32(cfg.Temperature),
			TopP:        toFloat32(cfg.TopP),
		})
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

func openAIConfig(cfg config.AIConfig) OpenAIConfig {
	return OpenAIConfig{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.Model,
		Temperature: toFloat32(cfg.Temperature),
		TopP:        toFloat32(cfg.TopP),
		MaxTokens:   cfg.MaxTokens,
	}
}

func geminiConfig(cfg config.AIConfig) GeminiConfig {
	return GeminiConfig{
		APIKey:      cfg.GeminiAPIKey,
		BaseURL:     cfg.GeminiBaseURL,
		Model:       cfg.Model,
		Temperature: toFloat32(cfg.Temperature),
		TopP:        toFloat32(cfg.TopP),
		MaxTokens:   cfg.MaxTokens,
	}
}

func toFloat32(v *float64) *float32 {
	if v == nil {
		return nil
	}
	val := float32(*v)
	return &val
}
