package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.tagRequest)
	r.Use(s.logRequest)
	r.Use(s.recoverPanic)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		// Journal endpoints answer 503 when the journal is disabled.
		r.Get("/diagnostics", s.handleDiagnostics)
		r.Get("/relay/history", s.handleRelayHistory)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such endpoint")
	})

	return r
}
