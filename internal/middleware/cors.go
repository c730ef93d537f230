package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS lets browser clients on other origins reach the chat API.
func CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:       []string{"*"},
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:       []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:               86400,
		OptionsSuccessStatus: http.StatusNoContent,
	})
}
