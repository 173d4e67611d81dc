package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/ksync/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/ksync/internal/api/middlewares"
	"github.com/markdave123-py/ksync/internal/config"
)

var allowedOrigins = []string{"http://localhost:5173", "http://localhost:8888"}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds and wires all routes. The knowledge routes require a
// bearer token when cfg.JWTSecret is set.
func NewServer(cfg *config.Config, h *handlers.KnowledgeHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           Routes(h, cfg.JWTSecret),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{httpServer: httpSrv, logger: logger.With("component", "http")}
}

// Routes returns the router serving the knowledge API.
func Routes(h *handlers.KnowledgeHandler, jwtSecret string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Report-URL"},
		AllowCredentials: true,
	}))

	r.Route("/api/knowledge", func(api chi.Router) {
		if jwtSecret != "" {
			api.Use(appMiddleware.JWTMiddleware(jwtSecret))
		}
		api.Get("/health", h.Health)
		api.Get("/verify", h.Verify)
		api.Post("/search", h.Search)
		api.Post("/ingest", h.Ingest)
	})

	return r
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
