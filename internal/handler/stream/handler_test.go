package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patientsim/patient-sim/internal/model/chat"
	"github.com/patientsim/patient-sim/internal/model/persona"
	chatservice "github.com/patientsim/patient-sim/internal/service/chat"
)

type stubCompleter struct {
	fragments []string
	err       error
}

func (s stubCompleter) StreamReply(context.Context, string, []chat.Message, string) (*schema.StreamReader[*schema.Message], error) {
	if s.err != nil {
		return nil, s.err
	}
	msgs := make([]*schema.Message, 0, len(s.fragments))
	for _, frag := range s.fragments {
		msgs = append(msgs, &schema.Message{Role: schema.Assistant, Content: frag})
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func (stubCompleter) Provider() string { return "fake" }
func (stubCompleter) Model() string    { return "fake-model" }

func setup(t *testing.T, completer chatservice.Completer) (*chi.Mux, string) {
	t.Helper()
	chatSvc := chatservice.NewService(persona.NewMemoryStore(persona.Seed()), completer, chatservice.Options{})
	session, err := chatSvc.CreateSession(context.Background(), "")
	require.NoError(t, err)

	r := chi.NewRouter()
	New(chatSvc, nil).RegisterRoutes(r)
	return r, session.ID
}

func events(t *testing.T, body string) []StreamResponse {
	t.Helper()
	var out []StreamResponse
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev StreamResponse
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		out = append(out, ev)
	}
	return out
}

func TestStreamRelaysTurn(t *testing.T) {
	r, sessionID := setup(t, stubCompleter{fragments: []string{"Hi", "", " there"}})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stream/"+sessionID+"?message=hello", nil))

	assert.Equal(t, "text/event-stream", resp.Header().Get("Content-Type"))
	got := events(t, resp.Body.String())
	require.Len(t, got, 4)
	assert.Equal(t, chat.RoleSystem, got[0].Role)
	assert.Equal(t, "Hi", got[1].Content)
	assert.Equal(t, " there", got[2].Content)
	assert.Equal(t, "end", got[3].Event)
	assert.True(t, got[3].Finished)
}

func TestStreamReportsUpstreamError(t *testing.T) {
	r, sessionID := setup(t, stubCompleter{err: errors.New("rate limited")})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stream/"+sessionID+"?message=hello", nil))

	got := events(t, resp.Body.String())
	require.Len(t, got, 2)
	assert.Equal(t, chat.RoleSystem, got[0].Role)
	assert.Equal(t, "error", got[1].Event)
	assert.Contains(t, got[1].Error, "rate limited")
}

func TestStreamValidatesRequest(t *testing.T) {
	r, sessionID := setup(t, stubCompleter{})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stream/"+sessionID, nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stream/missing?message=hi", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
