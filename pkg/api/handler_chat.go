package api

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/logforensics/pkg/orchestrator"
)

// submitChatHandler handles POST /api/chat. It creates a session whose
// pipeline runs against context.Background() rather than the request's
// own context, so the run outlives this request — the client follows up
// with GET /api/chat/stream/:session_id to watch it (spec.md §6).
func (s *Server) submitChatHandler(c *echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}
	if req.Project == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project is required")
	}

	sess, ctx := s.registry.Create(context.Background())
	go runPipeline(ctx, s.registry, sess, s.orch, orchestrator.Request{
		Prompt:  req.Prompt,
		Project: req.Project,
		Env:     req.Env,
		Domain:  req.Domain,
	})

	return c.JSON(http.StatusOK, &ChatResponse{
		SessionID: sess.ID,
		StreamURL: "/api/chat/stream/" + sess.ID,
	})
}
