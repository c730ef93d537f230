package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/patientsim/patient-sim/internal/handler/chat"
	"github.com/patientsim/patient-sim/internal/handler/landing"
	"github.com/patientsim/patient-sim/internal/handler/page"
	"github.com/patientsim/patient-sim/internal/handler/persona"
	"github.com/patientsim/patient-sim/internal/handler/stream"
	"github.com/patientsim/patient-sim/internal/handler/ws"
	"github.com/patientsim/patient-sim/internal/metrics"
	middlewarePkg "github.com/patientsim/patient-sim/internal/middleware"
	personaModel "github.com/patientsim/patient-sim/internal/model/persona"
	chatService "github.com/patientsim/patient-sim/internal/service/chat"
	"github.com/patientsim/patient-sim/pkg/utils"
)

// ChatRouterOptions toggles optional chat-service routes.
type ChatRouterOptions struct {
	Metrics bool
}

// NewChatRouter wires the chat service: browser page, websocket, REST and SSE.
func NewChatRouter(personas personaModel.Store, chatSvc *chatService.Service, logger *zerolog.Logger, opts ChatRouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS())

	r.Get("/healthz", handleHealth)
	if opts.Metrics {
		r.Handle("/metrics", metrics.Handler())
	}

	page.New(personas, logger).RegisterRoutes(r)
	ws.New(chatSvc, logger).RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		persona.New(personas).RegisterRoutes(api)
		chat.New(chatSvc, personas).RegisterRoutes(api)
		stream.New(chatSvc, logger).RegisterRoutes(api)
	})

	return r
}

// NewLandingRouter wires the landing service.
func NewLandingRouter(landingHandler *landing.Handler, logger *zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealth)
	landingHandler.RegisterRoutes(r)

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
