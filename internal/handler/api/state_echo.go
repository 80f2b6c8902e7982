package api

import (
	"context"
	"net/http"
	"time"

	"MarketScreener/internal/domain/models"
	"MarketScreener/internal/service/metrics"
	"MarketScreener/internal/service/ratelimit"
	xhttp "MarketScreener/pkg/http"
	xlogger "MarketScreener/pkg/logger"
	"MarketScreener/pkg/util"

	"github.com/labstack/echo/v4"
)

// StateService is the part of the engine exposed over HTTP.
type StateService interface {
	Snapshot() *models.Snapshot
	Render() string
	Cycle(ctx context.Context) (*models.Snapshot, error)
}

// StateEchoHandler serves the aggregate state and the snapshot stream.
type StateEchoHandler struct {
	logger *xlogger.Logger
	svc    StateService
	stream http.Handler
	rl     *ratelimit.Limiter
}

func NewStateEchoHandler(logger *xlogger.Logger, svc StateService, stream http.Handler) *StateEchoHandler {
	metrics.Register()
	return &StateEchoHandler{logger: logger, svc: svc, stream: stream, rl: ratelimit.New()}
}

func (h *StateEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/state", h.State)
	g.GET("/assets/:symbol", h.Asset)
	g.GET("/signals", h.Signals)
	g.GET("/render", h.Render)
	g.POST("/cycle", h.Cycle)
	if h.stream != nil {
		e.GET("/ws", echo.WrapHandler(h.stream))
	}
}

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (h *StateEchoHandler) State(c echo.Context) error {
	defer observe("state", time.Now())
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, h.svc.Snapshot())
}

func (h *StateEchoHandler) Asset(c echo.Context) error {
	defer observe("asset", time.Now())
	req := &models.AssetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues("asset").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	asset, ok := h.svc.Snapshot().Asset(req.Symbol)
	if !ok {
		metrics.APIErrors.WithLabelValues("asset").Inc()
		return xhttp.AppErrorResponse(c, xhttp.UnknownSymbolError(req.Symbol))
	}
	return xhttp.SuccessResponse(c, asset)
}

// Signals returns every active signal matching the filters, in snapshot order.
func (h *StateEchoHandler) Signals(c echo.Context) error {
	defer observe("signals", time.Now())
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues("signals").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	since := util.ParseTimeDefault(req.Since, time.Time{})
	rows := make([]models.SignalRow, 0)
	for _, a := range h.svc.Snapshot().Assets {
		for _, s := range a.Signals {
			if req.Name != "" && s.Name != req.Name {
				continue
			}
			if req.TF != "" && string(s.TimeFrame) != req.TF {
				continue
			}
			if abs(s.Value) < req.MinAbs || s.CreatedAt.Before(since) {
				continue
			}
			rows = append(rows, models.SignalRow{Symbol: a.Name, Signal: s})
		}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *StateEchoHandler) Render(c echo.Context) error {
	defer observe("render", time.Now())
	return c.String(http.StatusOK, h.svc.Render())
}

// Cycle forces an evaluation cycle outside the event schedule.
func (h *StateEchoHandler) Cycle(c echo.Context) error {
	defer observe("cycle", time.Now())
	if !h.rl.Allow(c.RealIP()+":cycle", 2, 0.5) {
		metrics.APIErrors.WithLabelValues("cycle").Inc()
		h.logger.Warn("Manual cycle rate limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.RateLimitedError("cycle"))
	}
	snap, err := h.svc.Cycle(c.Request().Context())
	if err != nil {
		metrics.APIErrors.WithLabelValues("cycle").Inc()
		h.logger.Error("Manual cycle failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("cycle failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, snap)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
