package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go/v2/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// newCompletionServer impersonates /chat/completions, streaming one chunk per fragment.
func newCompletionServer(t *testing.T, fragments []string, got *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err == nil {
			_ = json.Unmarshal(body, got)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for i, frag := range fragments {
			chunk := map[string]any{
				"id":      "chatcmpl-test",
				"object":  "chat.completion.chunk",
				"created": 1700000000,
				"model":   "gpt-3.5-turbo",
				"choices": []map[string]any{{
					"index":         0,
					"delta":         map[string]any{"content": frag},
					"finish_reason": nil,
				}},
			}
			data, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", data)
			if i == 0 {
				flusher.Flush()
			}
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
}

func TestOpenAIStreamRelaysDeltas(t *testing.T) {
	var got capturedRequest
	srv := newCompletionServer(t, []string{"Hi", "", " there"}, &got)
	defer srv.Close()

	m := NewOpenAIChatModel(OpenAIConfig{
		APIKey:         "sk-test",
		BaseURL:        srv.URL,
		Model:          "gpt-3.5-turbo",
		RequestOptions: []option.RequestOption{option.WithMaxRetries(0)},
	})

	stream, err := m.Stream(context.Background(), []*schema.Message{schema.UserMessage("hello")})
	require.NoError(t, err)

	frags, err := drain(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi", "", " there"}, frags)

	assert.Equal(t, "gpt-3.5-turbo", got.Model)
	assert.True(t, got.Stream)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[0].Content)
}

func TestOpenAIStreamSurfacesAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)
	}))
	defer srv.Close()

	m := NewOpenAIChatModel(OpenAIConfig{
		BaseURL:        srv.URL,
		Model:          "gpt-3.5-turbo",
		RequestOptions: []option.RequestOption{option.WithMaxRetries(0)},
	})

	_, err := m.Stream(context.Background(), []*schema.Message{schema.UserMessage("hello")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestToOpenAIMessagesMapsRoles(t *testing.T) {
	msgs := toOpenAIMessages([]*schema.Message{
		schema.SystemMessage("persona"),
		nil,
		schema.UserMessage("hi"),
		schema.AssistantMessage("hey", nil),
	})
	require.Len(t, msgs, 3)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	assert.NotNil(t, msgs[2].OfAssistant)
}

func TestTokenCounterNilSafe(t *testing.T) {
	var c *TokenCounter
	assert.Equal(t, 0, c.Count("anything"))
}
