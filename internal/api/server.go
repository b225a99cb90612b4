package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shelfarr/booksearch/internal/config"
	"github.com/shelfarr/booksearch/internal/logging"
	"github.com/shelfarr/booksearch/internal/metrics"
	"github.com/shelfarr/booksearch/internal/openlibrary"
	"github.com/shelfarr/booksearch/internal/realtime"
	"github.com/shelfarr/booksearch/internal/scheduler"
	"github.com/shelfarr/booksearch/internal/search"
)

// Server represents the API server
type Server struct {
	config    *config.Config
	version   string
	echo      *echo.Echo
	client    *openlibrary.Client
	wsHub     *realtime.Hub
	scheduler *scheduler.Scheduler
}

// NewServer creates a new API server instance
func NewServer(cfg *config.Config, client *openlibrary.Client, version string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = NewTemplateRenderer()

	// Create WebSocket hub; every connection gets its own debounced session
	wsHub := realtime.NewHub(client, search.Options{
		Debounce:   cfg.Search.Debounce,
		AllowStale: cfg.Search.AllowStale,
	})

	sched := scheduler.NewScheduler()
	if cfg.Probe.Interval > 0 {
		sched.AddTask(scheduler.UpstreamProbeTaskName, cfg.Probe.Interval, scheduler.UpstreamProbeTask(client), true)
	}

	// Global Middleware
	e.Use(middleware.Recover())
	e.Use(logging.EchoMiddleware(*logging.L()))
	if cfg.Metrics.Enabled {
		e.Use(metrics.EchoMiddleware())
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	s := &Server{
		config:    cfg,
		version:   version,
		echo:      e,
		client:    client,
		wsHub:     wsHub,
		scheduler: sched,
	}

	s.setupRoutes()

	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.echo.GET("/", s.index)
	s.echo.GET("/health", s.healthCheck)

	// WebSocket endpoint for the live search page
	s.echo.GET("/ws", s.wsHub.WebSocketHandler)

	api := s.echo.Group("/api/v1")
	api.GET("/search", s.searchBooks)

	if s.config.Metrics.Enabled {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}
}

// Start runs the background tasks and begins listening for requests. It
// returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.scheduler.Start()
	logging.L().Info().Str("addr", s.config.Server.ListenAddr).Msg("http server listening")
	return s.echo.Start(s.config.Server.ListenAddr)
}

// Shutdown closes live sessions, stops background tasks and drains requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsHub.CloseAll()
	s.scheduler.Stop()
	return s.echo.Shutdown(ctx)
}

// GetWSHub returns the WebSocket hub for external use
func (s *Server) GetWSHub() *realtime.Hub {
	return s.wsHub
}

// ServeHTTP lets the server be mounted or tested without a listener
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
