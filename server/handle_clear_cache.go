package server

import "github.com/labstack/echo/v4"

// handleClearCache resets the store and its counters, e.g. after
// sign-out. In-flight fetches are unaffected; whatever they write
// afterward is the new baseline.
func (s *Server) handleClearCache(e echo.Context) error {
	s.avatars.ClearCache()
	return e.JSON(200, map[string]string{"status": "cleared"})
}
