package api

import (
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	echo "github.com/labstack/echo/v5"
)

// filenameRe matches the allowed characters for a downloadable artifact
// filename (spec.md §6). It does not by itself exclude the literal ".."
// token, since "." is an allowed character — downloadHandler checks for
// that separately.
var filenameRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// downloadHandler handles GET /download/?filename=... , serving a
// previously persisted analysis artifact (spec.md §6). Rejects any
// filename containing a path separator or parent-directory reference.
func (s *Server) downloadHandler(c *echo.Context) error {
	filename := c.QueryParam("filename")
	if filename == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "filename is required")
	}
	if !filenameRe.MatchString(filename) || strings.Contains(filename, "..") {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid filename")
	}

	path := filepath.Join(s.analysisDir, filename)

	absDir, err := filepath.Abs(s.analysisDir)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not resolve analysis directory")
	}
	absPath, err := filepath.Abs(path)
	if err != nil || !strings.HasPrefix(absPath, absDir+string(filepath.Separator)) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid filename")
	}

	return c.Attachment(absPath, filename)
}
