// Package server provides the HTTP host surface for chat sessions.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/joshbot/chatsessions/internal/event"
	"github.com/joshbot/chatsessions/internal/logging"
	"github.com/joshbot/chatsessions/internal/session"
	"github.com/joshbot/chatsessions/pkg/types"
)

// Config holds server configuration.
type Config struct {
	Addr         string
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:         "127.0.0.1:8080",
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // No write timeout for SSE and streamed responses
	}
}

// ToolCatalog lists and invokes the configured tools.
type ToolCatalog interface {
	ListTools(ctx context.Context) ([]types.ToolInfo, error)
	CallTool(ctx context.Context, server, tool string, args map[string]any) (types.ToolResult, error)
}

// Server is the HTTP server.
type Server struct {
	config  *Config
	router  *chi.Mux
	httpSrv *http.Server
	manager *session.Manager
	bus     *event.Bus
	tools   ToolCatalog
	log     zerolog.Logger
}

// New creates a new Server. tools may be nil.
func New(cfg *Config, manager *session.Manager, bus *event.Bus, tools ToolCatalog) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Server{
		config:  cfg,
		router:  chi.NewRouter(),
		manager: manager,
		bus:     bus,
		tools:   tools,
		log:     logging.Component("server"),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(hlog.NewHandler(s.log))
	s.router.Use(hlog.AccessHandler(s.logAccess))
	s.router.Use(middleware.Recoverer)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "X-Response-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// logAccess writes one line per request. Streamed responses are logged
// when the stream ends.
func (s *Server) logAccess(r *http.Request, status, size int, duration time.Duration) {
	e := hlog.FromRequest(r).Debug()
	if status >= http.StatusInternalServerError {
		e = hlog.FromRequest(r).Warn()
	}
	e.Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("requestID", middleware.GetReqID(r.Context())).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Info().Str("addr", s.config.Addr).Msg("listening")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
