package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// streamChatHandler handles GET /api/chat/stream/:session_id, attaching
// the caller as the session's single SSE reader (spec.md §6) until the
// pipeline finishes or the client disconnects.
func (s *Server) streamChatHandler(c *echo.Context) error {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}

	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return mapSessionError(err)
	}

	if err := s.streamer.Stream(c.Response().Writer, c.Request(), sess); err != nil {
		return mapSessionError(err)
	}
	return nil
}
