package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"

	"BananaBot/internal/observability"
	"BananaBot/internal/usecase"
)

// Reporter provides the status document served at /status.
type Reporter interface {
	Report() usecase.Report
}

// Server exposes liveness and status endpoints.
type Server struct {
	e *echo.Echo
}

// New creates a new server instance.
func New(log *slog.Logger, reporter Reporter, service string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(slogecho.NewWithConfig(log, slogecho.Config{
		DefaultLevel: slog.LevelDebug,
		Filters:      []slogecho.Filter{slogecho.IgnorePath("/healthz")},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(observability.EchoMiddleware(service))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, reporter.Report())
	})

	return &Server{e: e}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start(addr string) error {
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and drains in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
