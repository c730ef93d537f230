package stream

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/patientsim/patient-sim/internal/logging"
	"github.com/patientsim/patient-sim/internal/model/chat"
	chatService "github.com/patientsim/patient-sim/internal/service/chat"
	"github.com/patientsim/patient-sim/pkg/utils"
)

// Handler relays a turn's UI messages as Server-Sent Events.
type Handler struct {
	chatSvc *chatService.Service
	log     *zerolog.Logger
}

// New creates a new stream handler.
func New(chatSvc *chatService.Service, logger *zerolog.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{chatSvc: chatSvc, log: logger}
}

// StreamResponse is one SSE data frame.
type StreamResponse struct {
	Event     string    `json:"event"`
	SessionID string    `json:"sessionId,omitempty"`
	Role      chat.Role `json:"role,omitempty"`
	Content   string    `json:"content,omitempty"`
	Finished  bool      `json:"finished,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// RegisterRoutes mounts GET /stream/{sessionID}?message=...
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userMessage := r.URL.Query().Get("message")

	if userMessage == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}
	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
		logging.With(logging.WithSessID(r.Context(), sessionID), h.log).
			Warn().Err(err).Msg("stream request failed")
	}
}

// HandleStreamRequest runs one turn, writing each emitted message as it
// arrives and closing with an "end" or "error" event.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID, userMessage string) error {
	sse, err := utils.NewSSEWriter(w)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return err
	}

	emit := chatService.EmitterFunc(func(_ context.Context, msg chat.Message) error {
		return sse.Send(StreamResponse{
			Event:     "message",
			SessionID: sessionID,
			Role:      msg.Role,
			Content:   msg.Content,
		})
	})

	if err := h.chatSvc.HandleMessage(ctx, sessionID, userMessage, emit); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		_ = sse.Send(StreamResponse{Event: "error", SessionID: sessionID, Error: err.Error()})
		return err
	}

	return sse.Send(StreamResponse{Event: "end", SessionID: sessionID, Finished: true})
}
