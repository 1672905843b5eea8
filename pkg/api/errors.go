package api

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/logforensics/pkg/sse"
)

// mapSessionError maps session-lookup/stream errors to HTTP responses.
func mapSessionError(err error) *echo.HTTPError {
	if errors.Is(err, sse.ErrSessionBusy) {
		return echo.NewHTTPError(http.StatusConflict, "session already has an attached stream reader")
	}
	if errors.Is(err, sse.ErrStreamingUnsupported) {
		return echo.NewHTTPError(http.StatusInternalServerError, "response writer does not support streaming")
	}
	// session.Registry.Get's error isn't a sentinel — a lookup miss is the
	// only failure mode, so treat anything else as not found too.
	return echo.NewHTTPError(http.StatusNotFound, "session not found")
}
