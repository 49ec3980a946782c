package server

import "github.com/labstack/echo/v4"

func (s *Server) handleRoot(e echo.Context) error {
	return e.String(200, "plumage: avatar cache for atproto clients\n")
}

func (s *Server) handleHealth(e echo.Context) error {
	return e.JSON(200, map[string]string{
		"version": "plumage " + s.config.Version,
	})
}
