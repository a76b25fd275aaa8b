package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/logging"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/observability"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/server/app"
)

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	EnableCORS   bool          `json:"enable_cors"`
	Debug        bool          `json:"debug"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`

	StreamGuard StreamGuardConfig `json:"stream_guard"`
}

// DefaultServerConfig returns the default server configuration. The write
// timeout is generous because SSE responses stay open for the whole run.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "localhost",
		Port:         8080,
		EnableCORS:   true,
		Debug:        false,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		StreamGuard: StreamGuardConfig{
			MaxDuration:   5 * time.Minute,
			MaxConcurrent: 64,
		},
	}
}

// Server exposes the chat API over HTTP: SSE streaming for runs, JSON for
// thread reads, WebSocket for the live event relay.
type Server struct {
	chat        *app.ChatService
	threadsAPI  *app.ThreadService
	broadcaster *app.EventBroadcaster
	health      *app.HealthChecker
	metrics     *observability.MetricsCollector

	engine     *gin.Engine
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	logger     logging.Logger
	startTime  time.Time
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithHealthChecker mounts the aggregated health probes on /healthz.
func WithHealthChecker(h *app.HealthChecker) ServerOption {
	return func(s *Server) {
		s.health = h
	}
}

// WithMetricsCollector mounts the Prometheus scrape handler on /metrics.
func WithMetricsCollector(m *observability.MetricsCollector) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer builds the router and wires all handlers.
func NewServer(cfg ServerConfig, chat *app.ChatService, threads *app.ThreadService, broadcaster *app.EventBroadcaster, opts ...ServerOption) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	if cfg.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
		corsConfig.AllowWebSockets = true
		engine.Use(cors.New(corsConfig))
	}

	s := &Server{
		chat:        chat,
		threadsAPI:  threads,
		broadcaster: broadcaster,
		engine:      engine,
		logger:      logging.NewComponentLogger("HTTPServer"),
		startTime:   time.Now(),
		wsUpgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	engine.Use(requestLogMiddleware(s.logger))
	engine.Use(userContextMiddleware())
	engine.Use(StreamGuardMiddleware(cfg.StreamGuard))
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.engine.Group("/api")

	// A message without a thread id opens a new thread; the thread.created
	// event on the stream carries the assigned id.
	api.POST("/messages", s.handleStreamMessage)

	threads := api.Group("/threads")
	{
		threads.GET("", s.handleListThreads)
		threads.GET("/:id", s.handleGetThread)
		threads.GET("/:id/items", s.handleListItems)
		threads.POST("/:id/messages", s.handleStreamMessage)
		threads.POST("/:id/approvals", s.handleSubmitApproval)
		threads.GET("/:id/events", s.handleEventSocket)
	}
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("Starting server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	uptime := time.Since(s.startTime)
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "uptime": uptime.String()})
		return
	}

	components := s.health.CheckAll(c.Request.Context())
	status := "ok"
	code := http.StatusOK
	for _, comp := range components {
		if !comp.Healthy {
			status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}
	c.JSON(code, gin.H{
		"status":     status,
		"uptime":     uptime.String(),
		"components": components,
	})
}
