package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/logforensics/pkg/orchestrator"
)

// streamAnalysisHandler handles POST /stream-analysis: a synchronous,
// one-shot variant of the chat+stream pair (spec.md §6). The session's
// pipeline runs against the request's own context, so a client
// disconnect cancels the run directly rather than waiting out a
// reconnection grace window.
func (s *Server) streamAnalysisHandler(c *echo.Context) error {
	var req StreamAnalysisRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	if req.Project == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project is required")
	}

	sess, ctx := s.registry.Create(c.Request().Context())
	go runPipeline(ctx, s.registry, sess, s.orch, orchestrator.Request{
		Prompt:  req.Text,
		Project: req.Project,
		Env:     req.Env,
		Domain:  req.Domain,
	})

	if err := s.streamer.Stream(c.Response().Writer, c.Request(), sess); err != nil {
		return mapSessionError(err)
	}
	return nil
}
