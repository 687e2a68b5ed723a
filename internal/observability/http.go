package observability

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

// EchoMiddleware traces status API requests, skipping the liveness check.
func EchoMiddleware(service string) echo.MiddlewareFunc {
	return otelecho.Middleware(service, otelecho.WithSkipper(func(c echo.Context) bool {
		return c.Request().URL.Path == "/healthz"
	}))
}
