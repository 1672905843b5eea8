package api

import (
	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/logforensics/pkg/llmcache"
)

// securityHeaders returns middleware that sets standard security response headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			return next(c)
		}
	}
}

// cacheKeyHeader sets X-LLM-Cache-Key on the response whenever the
// handler's execution caused an LLM cache operation (spec.md §6:
// "Response header X-LLM-Cache-Key is set when an LLM cache operation
// occurred"). gw.LastKey() reflects whatever gateway call happened most
// recently across the whole process, so the header is best-effort
// rather than strictly scoped to this request.
func cacheKeyHeader(gw *llmcache.Gateway) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			err := next(c)
			if key := gw.LastKey(); key != "" {
				c.Response().Header().Set("X-LLM-Cache-Key", key)
			}
			return err
		}
	}
}
