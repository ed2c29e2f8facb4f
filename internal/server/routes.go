package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	// Session routes
	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Patch("/", s.renameSession)
			r.Delete("/", s.deleteSession)

			r.Post("/clear", s.clearHistory)
			r.Patch("/options", s.updateOptions)

			// Streaming responses
			r.Post("/message", s.sendMessage)
			r.Post("/active", s.runActiveResponse)
		})
	})

	// Option catalog
	r.Get("/option", s.listOptionGroups)

	// Tool catalog
	r.Route("/tool", func(r chi.Router) {
		r.Get("/", s.listTools)
		r.Post("/{server}/{tool}", s.callTool)
	})

	// Event streaming (SSE)
	r.Get("/event", s.events)
}
