// Package server is the local diagnostics surface in front of the
// avatar cache: health, stats snapshot, avatar lookups, log export and
// cache clearing. It is unauthenticated and meant to bind loopback.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/moodesky/plumage/avatar"
	"github.com/moodesky/plumage/logging"
	slogecho "github.com/samber/slog-echo"
)

type Server struct {
	httpd   *http.Server
	echo    *echo.Echo
	logger  *slog.Logger
	avatars *avatar.Service
	ring    *logging.RingSink
	config  *config
}

type Args struct {
	Addr    string
	Avatars *avatar.Service
	Logger  *slog.Logger
	Ring    *logging.RingSink
	Version string
}

type config struct {
	Version string
}

type CustomValidator struct {
	validator *validator.Validate
}

type ValidationError struct {
	error
	Field string
	Tag   string
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		var validateErrors validator.ValidationErrors
		if errors.As(err, &validateErrors) && len(validateErrors) > 0 {
			first := validateErrors[0]
			return ValidationError{
				error: err,
				Field: first.Field(),
				Tag:   first.Tag(),
			}
		}

		return err
	}

	return nil
}

func New(args *Args) (*Server, error) {
	if args.Addr == "" {
		return nil, fmt.Errorf("addr must be set")
	}

	if args.Avatars == nil {
		return nil, fmt.Errorf("avatar service must be set")
	}

	if args.Logger == nil {
		args.Logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true

	e.Pre(middleware.RemoveTrailingSlash())
	e.Pre(slogecho.New(args.Logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"*"},
		AllowMethods: []string{"*"},
	}))

	vdtor := validator.New()
	vdtor.RegisterValidation("atproto-did", func(fl validator.FieldLevel) bool {
		if _, err := syntax.ParseDID(fl.Field().String()); err != nil {
			return false
		}
		return true
	})

	e.Validator = &CustomValidator{validator: vdtor}

	httpd := &http.Server{
		Addr:    args.Addr,
		Handler: e,
	}

	s := &Server{
		httpd:   httpd,
		echo:    e,
		logger:  args.Logger,
		avatars: args.Avatars,
		ring:    args.Ring,
		config: &config{
			Version: args.Version,
		},
	}

	return s, nil
}

func (s *Server) addRoutes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/_health", s.handleHealth)

	s.echo.GET("/stats", s.handleStats)
	s.echo.GET("/avatars", s.handleGetAvatars)
	s.echo.GET("/avatars/:did", s.handleGetAvatar)
	s.echo.GET("/logs", s.handleLogs)
	s.echo.POST("/cache/clear", s.handleClearCache)
}

func (s *Server) Serve(ctx context.Context) error {
	s.addRoutes()

	s.logger.Info("starting plumage diagnostics server", "addr", s.httpd.Addr)

	go func() {
		if err := s.httpd.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()

	<-ctx.Done()

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpd.Shutdown(sctx)
}
