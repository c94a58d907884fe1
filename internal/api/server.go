// Package api provides the read-only registry HTTP surface: fleet
// listing backed by the remote store, plus liveness and readiness
// probes.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/daig/daig-node/internal/service"
	"github.com/daig/daig-node/internal/store"
)

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server represents the registry HTTP server
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	handlers   *Handlers
	logger     *zap.Logger
}

// NewServer creates a new HTTP server for the registry API
func NewServer(cfg *ServerConfig, mgr *store.Manager, registry *service.RegistryService,
	collection string, logger *zap.Logger) *Server {

	router := mux.NewRouter()
	handlers := NewHandlers(mgr, registry, collection, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	s := &Server{
		router:     router,
		httpServer: httpServer,
		handlers:   handlers,
		logger:     logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health/live", s.handlers.Liveness).Methods(http.MethodGet)
	s.router.HandleFunc("/health/ready", s.handlers.Readiness).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/nodes", s.handlers.ListNodes).Methods(http.MethodGet)
	v1.HandleFunc("/nodes/{node_id}", s.handlers.GetNode).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "endpoint not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Router exposes the configured router (used by tests)
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting registry API server", zap.String("addr", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping registry API server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("API server shutdown failed: %w", err)
	}
	return nil
}
