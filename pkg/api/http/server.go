package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/taskgrid/taskgrid/internal/application/engine"
	"github.com/taskgrid/taskgrid/internal/application/workers"
	"github.com/taskgrid/taskgrid/pkg/ports"
)

// Server represents the HTTP API server.
type Server struct {
	router   *gin.Engine
	server   *http.Server
	repo     ports.TaskRepository
	records  ports.RecordStore
	executor *engine.Executor
	pool     *workers.Pool
	work     ports.WorkUnit
	logger   *zap.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Port       int
	Repository ports.TaskRepository
	Records    ports.RecordStore
	Executor   *engine.Executor
	Pool       *workers.Pool
	Work       ports.WorkUnit
	Logger     *zap.Logger
}

// NewServer creates a new HTTP server.
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))

	s := &Server{
		router:   router,
		repo:     cfg.Repository,
		records:  cfg.Records,
		executor: cfg.Executor,
		pool:     cfg.Pool,
		work:     cfg.Work,
		logger:   cfg.Logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	return s
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// Metrics
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// Workspace endpoints
		v1.POST("/workspaces", s.handleCreateWorkspace)
		v1.GET("/workspaces", s.handleListWorkspaces)
		v1.GET("/workspaces/:key", s.handleGetWorkspace)
		v1.GET("/workspaces/:key/tasks", s.handleListTasks)
		v1.POST("/workspaces/:key/execute", s.handleExecuteWorkspace)
		v1.GET("/workspaces/:key/metrics", s.handleWorkspaceMetrics)

		// Task endpoints
		v1.POST("/tasks", s.handleCreateTask)
		v1.GET("/tasks/:id", s.handleGetTask)
		v1.GET("/tasks/:id/records", s.handleListRecords)
		v1.POST("/tasks/:id/execute", s.handleExecuteTask)
		v1.POST("/tasks/:id/resubmit", s.handleResubmitTask)
	}
}

// SetupWebSocket adds the WebSocket handler to the server.
func (s *Server) SetupWebSocket(handler interface{}) {
	if wsHandler, ok := handler.(interface {
		HandleWorkspaceStream(*gin.Context)
	}); ok {
		s.router.GET("/api/v1/workspaces/:key/ws", wsHandler.HandleWorkspaceStream)
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}

// requestLogger is a middleware for request logging.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()))
	}
}
