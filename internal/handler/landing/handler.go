package landing

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/patientsim/patient-sim/internal/logging"
	"github.com/patientsim/patient-sim/internal/model/persona"
)

//go:embed templates/landing.html
var templateFS embed.FS

// Handler serves the landing page and hands visitors off to the chat service.
type Handler struct {
	personas persona.Store
	chatHost string
	tmpl     *template.Template
	log      *zerolog.Logger
}

// New parses the embedded landing template. chatHost is used verbatim as the
// redirect prefix.
func New(personas persona.Store, chatHost string, logger *zerolog.Logger) (*Handler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/landing.html")
	if err != nil {
		return nil, err
	}
	return NewWithTemplate(personas, chatHost, tmpl, logger), nil
}

// NewWithTemplate builds a handler around an already parsed template.
func NewWithTemplate(personas persona.Store, chatHost string, tmpl *template.Template, logger *zerolog.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{
		personas: personas,
		chatHost: chatHost,
		tmpl:     tmpl,
		log:      logger,
	}
}

// RegisterRoutes mounts the landing routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Get("/chat/{therapist}", h.handleChat)
}

type pageData struct {
	Personas []persona.Persona
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, pageData{Personas: h.personas.List()}); err != nil {
		h.log.Error().Err(err).Msg("render landing page failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// handleChat redirects to the chat service. The therapist key is passed
// through unvalidated; the chat service decides what it means.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	therapist := chi.URLParam(r, "therapist")
	w.Header().Set("Location", h.chatHost+"/?therapist="+queryValue(therapist))
	w.WriteHeader(http.StatusFound)
}

// queryValue gives every key one percent-encoding. chi hands over the raw
// segment when the path needed escaping and the decoded one otherwise, so
// decode first. Spaces become %20, not "+".
func queryValue(segment string) string {
	if decoded, err := url.PathUnescape(segment); err == nil {
		segment = decoded
	}
	return strings.ReplaceAll(url.QueryEscape(segment), "+", "%20")
}
