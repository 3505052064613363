package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// Ping calls f
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Services are the driving ports the API exposes
type Services struct {
	Auth        driving.AuthService
	Folders     driving.FolderService
	Permissions driving.PermissionService
	Documents   driving.DocumentService
	Query       driving.QueryService
	Chat        driving.ChatService
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     chi.Router
	version    string
	services   Services
	// Readiness checks by name; nil entries are skipped
	checks          map[string]Pinger
	logger          *zap.Logger
	shutdownTimeout time.Duration
}

// Config holds server configuration
type Config struct {
	Host            string
	Port            int
	Version         string
	CORSOrigins     []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		Version:         "dev",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, services Services, checks map[string]Pinger, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	s := &Server{
		router:          chi.NewRouter(),
		version:         cfg.Version,
		services:        services,
		checks:          checks,
		logger:          logger,
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes(cfg.CORSOrigins)
	return s
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(corsOrigins []string) {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.logger))
	r.Use(recoverPanics(s.logger))
	if len(corsOrigins) > 0 {
		r.Use(cors(corsOrigins))
	}

	// Health endpoints (no auth)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/version", s.handleVersion)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requireAuth(s.services.Auth))

		r.Post("/query", s.handleQuery)
		r.Get("/query/folders", s.handleQueryableFolders)
		r.Get("/query/stats", s.handleQueryStats)
		r.Post("/query/suggestions", s.handleSuggestQueries)

		r.Route("/folders", func(r chi.Router) {
			r.Post("/", s.handleCreateFolder)
			r.Get("/", s.handleListFolders)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetFolder)
				r.Patch("/", s.handleRenameFolder)
				r.Delete("/", s.handleDeleteFolder)
				r.Post("/move", s.handleMoveFolder)
				r.Get("/ancestors", s.handleAncestors)
				r.Get("/descendants", s.handleDescendants)
				r.Get("/access", s.handleEffectiveAccess)
				r.Get("/permissions", s.handleListGrants)
				r.Put("/permissions/{userId}", s.handleGrant)
				r.Delete("/permissions/{userId}", s.handleRevoke)
				r.Post("/documents", s.handleRegisterDocument)
				r.Get("/documents", s.handleListDocuments)
			})
		})

		r.Route("/documents/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetDocument)
			r.Delete("/", s.handleDeleteDocument)
			r.Put("/chunks", s.handleIngest)
			r.Get("/chunks", s.handleGetChunks)
			r.Get("/stats", s.handleDocumentStats)
			r.Get("/download", s.handleDownload)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Get("/", s.handleListSessions)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Patch("/", s.handleRenameSession)
				r.Delete("/", s.handleDeleteSession)
				r.Get("/messages", s.handleListMessages)
				r.Post("/messages", s.handleAppendMessage)
			})
		})
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
