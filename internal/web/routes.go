package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-gate/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	facesHandler := handlers.NewFacesHandler(s.deps.Engine, s.deps.Extractor, s.deps.Comparisons, s.log)
	configHandler := handlers.NewConfigHandler(s.config, s.deps.Backend)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/config", configHandler.Get)

		// Faces
		r.Post("/faces/register", facesHandler.Register)
		r.Post("/faces/verify", facesHandler.Verify)
		r.Post("/faces/compare", facesHandler.Compare)
		r.Get("/faces/subjects/{subjectID}", facesHandler.SubjectStatus)
	})

	// Paths used by the first kiosk clients
	s.router.Post("/api/save", facesHandler.Register)
	s.router.Post("/api/verify", facesHandler.Verify)
	s.router.Post("/api/compare", facesHandler.Compare)
	s.router.Post("/api/store-face", facesHandler.Register)
	s.router.Post("/api/compare-face", facesHandler.Compare)
}
