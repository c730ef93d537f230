package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

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

func setupRouter(completer chatservice.Completer) (*chi.Mux, *chatservice.Service) {
	store := persona.NewMemoryStore(persona.Seed())
	chatSvc := chatservice.NewService(store, completer, chatservice.Options{PersonaFromRequest: true})
	handler := New(chatSvc, store)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc
}

func do(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCreateSessionValidPersona(t *testing.T) {
	r, _ := setupRouter(stubCompleter{})
	resp := do(r, http.MethodPost, "/session", []byte(`{"personaId":"hard"}`))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	var session chat.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.PersonaID != "aisha" {
		t.Fatalf("expected persona aisha, got %s", session.PersonaID)
	}
	if session.PromptSent {
		t.Fatal("new session must not have sent its prompt")
	}
}

func TestCreateSessionInvalidPersona(t *testing.T) {
	r, _ := setupRouter(stubCompleter{})
	resp := do(r, http.MethodPost, "/session", []byte(`{"personaId":"non-existent"}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCreateSessionWithoutPersonaUsesDefault(t *testing.T) {
	r, _ := setupRouter(stubCompleter{})
	resp := do(r, http.MethodPost, "/session", []byte(`{}`))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	var session chat.Session
	_ = json.NewDecoder(resp.Body).Decode(&session)
	if session.PersonaID != persona.DefaultID {
		t.Fatalf("expected default persona, got %s", session.PersonaID)
	}
}

func TestSendMessageReturnsEmittedMessages(t *testing.T) {
	r, chatSvc := setupRouter(stubCompleter{fragments: []string{"Hi", "", " there"}})
	session, _ := chatSvc.CreateSession(context.Background(), "")

	resp := do(r, http.MethodPost, "/session/"+session.ID+"/messages", []byte(`{"content":"hello"}`))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var emitted []chat.Message
	if err := json.NewDecoder(resp.Body).Decode(&emitted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(emitted) != 3 {
		t.Fatalf("expected system + 2 fragments, got %d", len(emitted))
	}
	if emitted[0].Role != chat.RoleSystem || emitted[1].Content != "Hi" || emitted[2].Content != " there" {
		t.Fatalf("unexpected messages: %+v", emitted)
	}

	transcript := do(r, http.MethodGet, "/session/"+session.ID+"/messages", nil)
	if transcript.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", transcript.Code)
	}
}

func TestSendMessageErrors(t *testing.T) {
	r, chatSvc := setupRouter(stubCompleter{err: errors.New("upstream down")})
	session, _ := chatSvc.CreateSession(context.Background(), "")

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"unknown session", "/session/missing/messages", `{"content":"hi"}`, http.StatusNotFound},
		{"empty content", "/session/" + session.ID + "/messages", `{"content":""}`, http.StatusBadRequest},
		{"bad body", "/session/" + session.ID + "/messages", `{`, http.StatusBadRequest},
		{"upstream failure", "/session/" + session.ID + "/messages", `{"content":"hi"}`, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(r, http.MethodPost, tc.path, []byte(tc.body))
			if resp.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.Code)
			}
		})
	}
}

func TestEndSession(t *testing.T) {
	r, chatSvc := setupRouter(stubCompleter{})
	session, _ := chatSvc.CreateSession(context.Background(), "")

	if resp := do(r, http.MethodDelete, "/session/"+session.ID, nil); resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if resp := do(r, http.MethodGet, "/session/"+session.ID, nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after end, got %d", resp.Code)
	}
}
