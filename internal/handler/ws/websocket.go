package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/patientsim/patient-sim/internal/logging"
	"github.com/patientsim/patient-sim/internal/model/chat"
	chatservice "github.com/patientsim/patient-sim/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Frame types sent to the browser.
const (
	FrameConnected = "connected"
	FrameMessage   = "message"
	FrameError     = "error"
)

// Handler serves the chat UI websocket. Every connection owns one session.
type Handler struct {
	chatSvc  *chatservice.Service
	log      *zerolog.Logger
	upgrader websocket.Upgrader
}

// New creates the websocket handler.
func New(chatSvc *chatservice.Service, logger *zerolog.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{
		chatSvc: chatSvc,
		log:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts GET /ws.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

// InboundFrame is what the browser sends for each user turn.
type InboundFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// OutboundFrame wraps every server-to-browser message.
type OutboundFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// MessageData is the payload of a "message" frame.
type MessageData struct {
	Role    chat.Role `json:"role"`
	Content string    `json:"content"`
}

// conn serializes writes; gorilla allows only one concurrent writer.
type conn struct {
	ws        *websocket.Conn
	sessionID string
	mu        sync.Mutex
}

func (c *conn) write(frame OutboundFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	frame.SessionID = c.sessionID
	frame.Timestamp = time.Now().Unix()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(frame)
}

// Emit implements chatservice.Emitter.
func (c *conn) Emit(_ context.Context, msg chat.Message) error {
	return c.write(OutboundFrame{
		Type: FrameMessage,
		Data: MessageData{Role: msg.Role, Content: msg.Content},
	})
}

func (c *conn) sendError(message string) error {
	return c.write(OutboundFrame{
		Type: FrameError,
		Data: map[string]string{"message": message},
	})
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.chatSvc == nil {
		http.Error(w, "chat service unavailable", http.StatusServiceUnavailable)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer wsConn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session, err := h.chatSvc.CreateSession(ctx, r.URL.Query().Get("therapist"))
	if err != nil {
		h.log.Error().Err(err).Msg("create session failed")
		return
	}
	defer h.chatSvc.EndSession(ctx, session.ID)

	ctx = logging.WithPersona(logging.WithSessID(ctx, session.ID), session.PersonaID)
	logger := logging.With(ctx, h.log)
	c := &conn{ws: wsConn, sessionID: session.ID}

	_ = wsConn.SetReadDeadline(time.Now().Add(readTimeout))
	wsConn.SetPongHandler(func(string) error {
		return wsConn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go pingLoop(ctx, wsConn)

	if err := c.write(OutboundFrame{
		Type: FrameConnected,
		Data: map[string]string{"persona": session.PersonaID},
	}); err != nil {
		logger.Warn().Err(err).Msg("write connected frame failed")
		return
	}

	for {
		var frame InboundFrame
		if err := wsConn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("websocket read error")
			}
			return
		}

		if frame.Type != FrameMessage {
			if err := c.sendError("unsupported message type: " + frame.Type); err != nil {
				return
			}
			continue
		}

		if err := h.chatSvc.HandleMessage(ctx, session.ID, frame.Content, c); err != nil {
			if werr := c.sendError(err.Error()); werr != nil {
				return
			}
		}
		_ = wsConn.SetReadDeadline(time.Now().Add(readTimeout))
	}
}

func pingLoop(ctx context.Context, wsConn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := wsConn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
