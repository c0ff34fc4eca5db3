package api

import (
	"time"

	models "TrendSentry/internal/domain/models"
	domrepo "TrendSentry/internal/domain/repository"
	"TrendSentry/internal/engine"
	"TrendSentry/internal/usecase"
	xhttp "TrendSentry/pkg/http"
	xlogger "TrendSentry/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SignalsEchoHandler exposes the read-only query surface: signal history,
// the current session, pool status and a health probe.
type SignalsEchoHandler struct {
	logger    *xlogger.Logger
	store     domrepo.SignalStore
	manager   *engine.Manager
	collector *usecase.PriceCollector
}

func NewSignalsEchoHandler(logger *xlogger.Logger, store domrepo.SignalStore, manager *engine.Manager, collector *usecase.PriceCollector) *SignalsEchoHandler {
	return &SignalsEchoHandler{logger: logger, store: store, manager: manager, collector: collector}
}

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signals", h.Signals)
	g.GET("/signals/today", h.Today)
	g.GET("/status", h.Status)
	e.GET("/health", h.Health)
}

func (h *SignalsEchoHandler) Signals(c echo.Context) error {
	req := &models.SignalsQueryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	sigs, err := h.store.Query(c.Request().Context(), req.Symbol, models.SignalStatus(req.Status), req.Limit)
	if err != nil {
		h.logger.Error("signals query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, sigs, int64(len(sigs)))
}

func (h *SignalsEchoHandler) Today(c echo.Context) error {
	req := &models.TodaySignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	since := time.Now().Truncate(24 * time.Hour)
	sigs, err := h.store.SignalsSince(c.Request().Context(), since, req.Limit)
	if err != nil {
		h.logger.Error("today signals query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, sigs, int64(len(sigs)))
}

func (h *SignalsEchoHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.manager.Status())
}

func (h *SignalsEchoHandler) Health(c echo.Context) error {
	type health struct {
		Store  string `json:"store"`
		Stream string `json:"stream"`
		Pool   string `json:"pool"`
	}
	res := health{Store: "ok", Stream: "ok", Pool: "ok"}
	degraded := false

	if err := h.store.Health(c.Request().Context()); err != nil {
		res.Store = err.Error()
		degraded = true
	}
	if h.collector != nil && !h.collector.IsConnected() {
		res.Stream = "disconnected"
		degraded = true
	}
	if st := h.manager.Status(); st.Degraded {
		res.Pool = "degraded"
		degraded = true
	}

	if degraded {
		return xhttp.DataResponse(c, 503, res)
	}
	return xhttp.SuccessResponse(c, res)
}
