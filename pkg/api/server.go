// Package api provides the HTTP surface for the log-forensics pipeline
// (spec.md §6): session submission, SSE streaming, artifact download,
// liveness, and LLM-cache administration.
package api

import (
	"context"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeready-toolchain/logforensics/pkg/llmcache"
	"github.com/codeready-toolchain/logforensics/pkg/orchestrator"
	"github.com/codeready-toolchain/logforensics/pkg/session"
	"github.com/codeready-toolchain/logforensics/pkg/sse"
)

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	registry    *session.Registry
	streamer    *sse.Streamer
	orch        *orchestrator.Orchestrator
	gateway     *llmcache.Gateway
	analysisDir string
}

// NewServer creates a new API server with Echo v5.
func NewServer(
	registry *session.Registry,
	streamer *sse.Streamer,
	orch *orchestrator.Orchestrator,
	gateway *llmcache.Gateway,
	analysisDir string,
) *Server {
	e := echo.New()

	s := &Server{
		echo:        e,
		registry:    registry,
		streamer:    streamer,
		orch:        orch,
		gateway:     gateway,
		analysisDir: analysisDir,
	}

	s.echo.Use(securityHeaders())
	s.echo.Use(cacheKeyHeader(gateway))
	s.setupRoutes()
	return s
}

// setupRoutes registers all HTTP endpoints (spec.md §6).
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(8 * 1024 * 1024))

	s.echo.GET("/health", s.healthHandler)

	s.echo.POST("/api/chat", s.submitChatHandler)
	s.echo.GET("/api/chat/stream/:session_id", s.streamChatHandler)
	s.echo.POST("/stream-analysis", s.streamAnalysisHandler)
	s.echo.GET("/download/", s.downloadHandler)

	s.echo.GET("/cache/ping", s.cachePingHandler)
	s.echo.GET("/cache/stats", s.cacheStatsHandler)
	s.echo.POST("/cache/delete", s.cacheDeleteHandler)
	s.echo.POST("/cache/clear-l1", s.cacheClearL1Handler)
}

// MountMetrics registers GET /metrics against reg. Separate from
// NewServer since callers without a Prometheus registry (most tests)
// don't need the route.
func (s *Server) MountMetrics(reg prometheus.Gatherer) {
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
}

// Start starts the HTTP server on the given address (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.echo,
		// No write/read timeout: the chat/stream endpoints hold connections
		// open for the lifetime of a pipeline run (spec.md §5 per-step
		// budgets already bound each stage's own duration).
	}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener.
// Used by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health: a liveness probe only (spec.md
// §6), returning 200 unconditionally while the process is running.
func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &HealthResponse{Status: "ok"})
}
