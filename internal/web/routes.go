package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/photo-indexer/internal/web/handlers"
)

func (s *Server) setupRoutes(matches *handlers.MatchesHandler, reindex *handlers.ReindexHandler) {
	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/matches", matches.Find)
		r.Post("/index", reindex.Start)
	})
}
