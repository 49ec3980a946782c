package server

import "github.com/labstack/echo/v4"

func (s *Server) handleStats(e echo.Context) error {
	return e.JSON(200, s.avatars.Stats())
}
