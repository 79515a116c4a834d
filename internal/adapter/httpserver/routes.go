package httpserver

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.handleHealth())
	r.Get("/metrics", s.handleMetrics())
	r.Get("/events", s.events.HandleWebSocket)

	r.Route("/api", func(api chi.Router) {
		api.Use(s.limiter.Middleware)

		// Saved connections
		api.Get("/connections", s.handleListConnections())
		api.Post("/connections", s.handleSaveConnection())
		api.Delete("/connections/{id}", s.handleDeleteConnection())

		// Lifecycle entry points
		api.Post("/connections/test", s.handleTestConnection())
		api.Post("/connections/{id}/connect", s.handleConnect())
		api.Post("/connections/{id}/disconnect", s.handleDisconnect())
		api.Post("/connections/{id}/reconnect", s.handleReconnect())
		api.Get("/connections/{id}/status", s.handleStatus())

		// Query surface
		api.Post("/connections/{id}/query", s.handleQuery())
		api.Post("/connections/{id}/cancel", s.handleCancelQuery())
		api.Get("/connections/{id}/databases", s.handleListDatabases())
		api.Get("/connections/{id}/tables", s.handleListTables())
		api.Post("/connections/{id}/rows", s.handleFetchRows())
		api.Get("/connections/{id}/history", s.handleQueryHistory())
	})

	s.router = r
}
