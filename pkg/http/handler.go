package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler registers its routes on the server.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// Handlers registers each non-nil handler in order.
type Handlers []Handler

func (hs Handlers) RegisterRoutes(e *echo.Echo) {
	for _, h := range hs {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
}

// opsHandler serves liveness and the prometheus scrape endpoint.
type opsHandler struct {
	started time.Time
}

func (o opsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error {
		return SuccessResponse(c, map[string]string{
			"status": "ok",
			"uptime": time.Since(o.started).Truncate(time.Second).String(),
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
