package page

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/patientsim/patient-sim/internal/logging"
	"github.com/patientsim/patient-sim/internal/model/persona"
)

//go:embed templates/chat.html
var templateFS embed.FS

var chatTemplate = template.Must(template.ParseFS(templateFS, "templates/chat.html"))

// Handler renders the browser chat client.
type Handler struct {
	personas persona.Store
	log      *zerolog.Logger
}

// New creates the chat page handler.
func New(personas persona.Store, logger *zerolog.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{personas: personas, log: logger}
}

// RegisterRoutes mounts GET /.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleChatPage)
}

type pageData struct {
	Therapist string
	Title     string
}

// handleChatPage only titles the page; the websocket decides the persona.
func (h *Handler) handleChatPage(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Therapist: r.URL.Query().Get("therapist"),
		Title:     "Patient Simulator",
	}
	if p, ok := h.personas.FindByID(data.Therapist); ok {
		data.Title = "Session with " + p.Name
	}

	var buf bytes.Buffer
	if err := chatTemplate.Execute(&buf, data); err != nil {
		h.log.Error().Err(err).Msg("render chat page failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
