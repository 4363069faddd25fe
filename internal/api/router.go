package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the read-only agent surface. Every data route sits behind
// agent token auth; everything is GET.
func NewRouter(h *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HealthHandler)

		r.Group(func(r chi.Router) {
			r.Use(h.AgentAuthMiddleware)

			r.Get("/messages", h.ListMessagesHandler)
			r.Get("/search", h.SearchHandler)
		})
	})

	return r
}
