package server

import (
	"github.com/labstack/echo/v4"
	"github.com/moodesky/plumage/internal/helpers"
)

// handleLogs exports the in-memory ring of recent log entries as JSON
// for offline diagnostics.
func (s *Server) handleLogs(e echo.Context) error {
	if s.ring == nil {
		return e.JSON(404, map[string]string{"error": "LogExportDisabled"})
	}

	b, err := s.ring.Export()
	if err != nil {
		return helpers.ServerError(e, nil)
	}

	return e.JSONBlob(200, b)
}
