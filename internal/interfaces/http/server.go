// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to lifecycle engine and service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/image-annotation/internal/application/service"
	"github.com/garyjia/image-annotation/internal/application/workflow"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// HealthFunc reports whether the backing components are usable, with per-component details
type HealthFunc func(ctx context.Context) (healthy bool, details interface{})

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Mode is the gin mode: debug, release or test
	Mode string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Mode:         gin.ReleaseMode,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	engine     workflow.Engine
	users      service.UserService
	archive    service.ArchiveService
	health     HealthFunc
	logger     Logger
}

// NewServer creates a new HTTP server over the lifecycle engine and read services
func NewServer(
	config ServerConfig,
	engine workflow.Engine,
	users service.UserService,
	archive service.ArchiveService,
	health HealthFunc,
	logger Logger,
) *Server {
	mode := config.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	router := gin.New()

	server := &Server{
		config:  config,
		router:  router,
		engine:  engine,
		users:   users,
		archive: archive,
		health:  health,
		logger:  logger,
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup routes
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// Logging middleware
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// Process request
		c.Next()

		// Log request details
		latency := time.Since(start)
		status := c.Writer.Status()

		keysAndValues := []interface{}{
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		}
		if actor, ok := actorFrom(c); ok {
			keysAndValues = append(keysAndValues, "user_id", actor.UserID, "role", actor.Role.String())
		}

		s.logger.Info("HTTP request", keysAndValues...)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.engine, s.users, s.archive, s.health, s.logger)

	// Health check
	s.router.GET("/health", handlers.HealthCheck)

	// API routes, every one of them acting on behalf of a resolved user
	api := s.router.Group("/api")
	api.Use(identityMiddleware(s.users, s.logger))
	{
		// Tasks
		api.POST("/tasks", handlers.CreateTasks)
		api.GET("/tasks", handlers.ListTasks)
		api.GET("/tasks/:id", handlers.GetTask)
		api.POST("/tasks/:id/claim", handlers.ClaimTask)
		api.POST("/tasks/:id/annotation", handlers.SubmitAnnotation)
		api.PUT("/tasks/:id/assign", handlers.AssignTask)
		api.DELETE("/tasks/:id", handlers.DeleteTask)

		// Reviews
		api.GET("/reviews", handlers.ReviewQueue)
		api.POST("/annotations/:id/review", handlers.DecideReview)
		api.POST("/reviews/batch", handlers.BatchDecideReview)

		// Completed Archive
		api.GET("/completed", handlers.ListCompleted)
		api.GET("/completed/export", handlers.ExportCompleted)

		// Users
		api.POST("/users", handlers.CreateUser)
		api.GET("/users", handlers.ListUsers)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
