package ai

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/patientsim/patient-sim/internal/config"
)

func TestNewChatModelSelectsOpenAI(t *testing.T) {
	temp := 0.7
	m, err := NewChatModel(context.Background(), config.AIConfig{
		Provider:    config.ProviderOpenAI,
		Model:       "gpt-3.5-turbo",
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIChatModel{}, m)
}

func TestNewChatModelRejectsIncompleteConfig(t *testing.T) {
	cases := map[string]config.AIConfig{
		"unknown provider": {Provider: "llama", Model: "x"},
		"gemini no key":    {Provider: config.ProviderGemini, Model: "gemini-2.0-flash"},
		"ark no creds":     {Provider: config.ProviderArk, Model: "doubao"},
		"openai no model":  {Provider: config.ProviderOpenAI},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			m, err := NewChatModel(context.Background(), cfg)
			assert.Error(t, err)
			assert.Nil(t, m)
		})
	}
}

func TestGeminiBuildRequestMovesSystemToInstruction(t *testing.T) {
	maxTokens := 256
	g := &GeminiChatModel{model: "gemini-2.0-flash", maxTokens: &maxTokens}

	name, contents, cfg := g.buildRequest([]*schema.Message{
		schema.SystemMessage("You are Aisha."),
		schema.UserMessage("Hi"),
		schema.AssistantMessage("...hey.", nil),
		schema.UserMessage("How are you?"),
	})

	assert.Equal(t, "gemini-2.0-flash", name)
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "You are Aisha.", cfg.SystemInstruction.Parts[0].Text)
	assert.EqualValues(t, 256, cfg.MaxOutputTokens)

	require.Len(t, contents, 3)
	assert.Equal(t, string(genai.RoleUser), string(contents[0].Role))
	assert.Equal(t, string(genai.RoleModel), string(contents[1].Role))
	assert.Equal(t, "How are you?", contents[2].Parts[0].Text)
}

func TestGeminiConfigCarriesBaseURL(t *testing.T) {
	maxTokens := 128
	got := geminiConfig(config.AIConfig{
		Provider:      config.ProviderGemini,
		Model:         "gemini-2.0-flash",
		GeminiAPIKey:  "g-key",
		GeminiBaseURL: "https://gemini.proxy.internal",
		MaxTokens:     &maxTokens,
	})

	assert.Equal(t, "g-key", got.APIKey)
	assert.Equal(t, "https://gemini.proxy.internal", got.BaseURL)
	assert.Equal(t, "gemini-2.0-flash", got.Model)
	assert.Equal(t, &maxTokens, got.MaxTokens)
	assert.Nil(t, got.Temperature)
}

func TestToFloat32(t *testing.T) {
	assert.Nil(t, toFloat32(nil))
	v := 0.5
	assert.InDelta(t, 0.5, *toFloat32(&v), 1e-6)
}
