package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patientsim/patient-sim/internal/handler/landing"
	"github.com/patientsim/patient-sim/internal/logging"
	"github.com/patientsim/patient-sim/internal/metrics"
	"github.com/patientsim/patient-sim/internal/model/chat"
	personaModel "github.com/patientsim/patient-sim/internal/model/persona"
	chatService "github.com/patientsim/patient-sim/internal/service/chat"
)

type silentCompleter struct{}

func (silentCompleter) StreamReply(context.Context, string, []chat.Message, string) (*schema.StreamReader[*schema.Message], error) {
	return schema.StreamReaderFromArray([]*schema.Message{}), nil
}
func (silentCompleter) Provider() string { return "fake" }
func (silentCompleter) Model() string    { return "fake-model" }

func chatRouter(opts ChatRouterOptions) http.Handler {
	store := personaModel.NewMemoryStore(personaModel.Seed())
	svc := chatService.NewService(store, silentCompleter{}, chatService.Options{})
	return NewChatRouter(store, svc, logging.Nop(), opts)
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, target, nil))
	return resp
}

func TestChatRouterRoutes(t *testing.T) {
	metrics.Register()
	r := chatRouter(ChatRouterOptions{Metrics: true})

	assert.Equal(t, http.StatusOK, get(r, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(r, "/").Code)
	assert.Equal(t, http.StatusOK, get(r, "/api/personas").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/api/session/missing/messages").Code)

	resp := get(r, "/metrics")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "patientsim_")
}

func TestChatRouterWithoutMetrics(t *testing.T) {
	r := chatRouter(ChatRouterOptions{})
	assert.Equal(t, http.StatusNotFound, get(r, "/metrics").Code)
}

func TestChatRouterPreflight(t *testing.T) {
	r := chatRouter(ChatRouterOptions{})
	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/session", nil)
	req.Header.Set("Origin", "http://localhost:5000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestLandingRouterRedirect(t *testing.T) {
	store := personaModel.NewMemoryStore(personaModel.Seed())
	lh, err := landing.New(store, "https://chat.example.org", logging.Nop())
	require.NoError(t, err)
	r := NewLandingRouter(lh, logging.Nop())

	resp := get(r, "/chat/aisha")
	assert.Equal(t, http.StatusFound, resp.Code)
	assert.Equal(t, "https://chat.example.org/?therapist=aisha", resp.Header().Get("Location"))
	assert.Equal(t, http.StatusOK, get(r, "/").Code)
}
