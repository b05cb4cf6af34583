// Package api serves widget sessions over HTTP: the rendered results page, the
// engine snapshot and the filter, quote and comparison events that drive it.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/dpr-plan-engine/internal/domain"
	"github.com/dpr-plan-engine/internal/middleware"
	"github.com/dpr-plan-engine/internal/repository"
)

const version = "1.0.0"

// HistoryLister reads back recorded quote sets.
type HistoryLister interface {
	ListBySession(ctx context.Context, sessionID string, limit int) ([]repository.QuoteRecord, error)
}

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Dependencies are the collaborators the server routes requests to.
type Dependencies struct {
	Sessions *SessionRegistry
	Quotes   domain.QuoteService
	// History is optional; quote sets are not recorded when it is nil.
	History domain.QuoteHistory
	// Database is optional and reported by /health when set.
	Database HealthChecker
	Logger   *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	router        *gin.Engine
	server        *http.Server

	sessions *SessionRegistry
	quotes   domain.QuoteService
	history  domain.QuoteHistory
	database HealthChecker
	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies) *Server {
	cfg := configManager.GetConfig()

	if gin.Mode() != gin.TestMode {
		if cfg.Logging.Level == "debug" {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.AccessLog(logger))

	s := &Server{
		configManager: configManager,
		router:        router,
		sessions:      deps.Sessions,
		quotes:        deps.Quotes,
		history:       deps.History,
		database:      deps.Database,
		upgrader:      newUpgrader(cfg.Server.AllowedOrigins),
		logger:        logger,
	}
	s.setupRoutes()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	s.sessions.Close()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/sessions", s.handleCreateSession)
		v1.DELETE("/sessions/:id", s.handleDeleteSession)
		v1.GET("/sessions/:id/results", s.handleResults)
		v1.GET("/sessions/:id/state", s.handleState)
		v1.GET("/sessions/:id/stream", s.handleStream)
		v1.PUT("/sessions/:id/fields/:name", s.handleSetField)
		v1.PUT("/sessions/:id/hospital-accommodation", s.handleHospitalAccommodation)
		v1.POST("/sessions/:id/quote", s.handleQuote)
		v1.GET("/sessions/:id/quotes", s.handleQuoteHistory)
		v1.POST("/sessions/:id/comparison/activate", s.handleCompare)
		v1.POST("/sessions/:id/comparison/:plan", s.handleAddComparison)
		v1.DELETE("/sessions/:id/comparison/:plan", s.handleRemoveComparison)
		v1.DELETE("/sessions/:id/comparison", s.handleClearComparison)
		v1.GET("/applications/:confirmation", s.handleApplicationURL)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	body := gin.H{
		"timestamp": time.Now().UTC(),
		"version":   version,
		"sessions":  s.sessions.Len(),
	}
	if s.database != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := s.database.Health(ctx); err != nil {
			s.logger.WithError(err).Warn("Database health check failed")
			status, code = "unhealthy", http.StatusServiceUnavailable
			body["database"] = "unreachable"
		} else {
			body["database"] = "ok"
		}
	}
	body["status"] = status
	c.JSON(code, body)
}
