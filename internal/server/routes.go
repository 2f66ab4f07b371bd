package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/berfenger/smartess/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	actorRequestTimeout = 10 * time.Second
	maxHistoryLimit     = 1000
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)

	api := e.Group("/api")
	api.GET("/schedule", s.ScheduleHandler)
	api.GET("/dispatch", s.DispatchStateHandler)
	api.PUT("/dispatch/hold", s.DispatchHoldHandler)
	api.PUT("/dispatch/dry_run", s.DispatchDryRunHandler)
	api.POST("/tariff/reload", s.ReloadTariffHandler)
	if s.recorder != nil {
		api.GET("/history", s.HistoryHandler)
	}

	if s.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, actorRequestTimeout).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

// ScheduleHandler serves the merged schedule at ?at=RFC3339, or now.
func (s *Server) ScheduleHandler(c echo.Context) error {
	at := s.clock()
	if v := c.QueryParam("at"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "at must be an RFC3339 timestamp")
		}
		at = parsed
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetScheduleRequest{At: at}, actorRequestTimeout).Result()
	if err != nil {
		return s.unavailable(err)
	}
	resp, ok := res.(domain.GetScheduleResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
	if resp.Location != nil {
		at = at.In(resp.Location)
	}
	return c.JSON(http.StatusOK, ScheduleToDTO(at, resp))
}

func (s *Server) DispatchStateHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetDispatchStateRequest{}, actorRequestTimeout).Result()
	if err != nil {
		return s.unavailable(err)
	}
	resp, ok := res.(domain.GetDispatchStateResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, DispatchStateToDTO(resp))
}

func (s *Server) DispatchHoldHandler(c echo.Context) error {
	enable, err := enableParam(c)
	if err != nil {
		return err
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.DispatchHoldRequest{Enable: enable}, actorRequestTimeout).Result()
	if err != nil {
		return s.unavailable(err)
	}
	resp, ok := res.(domain.DispatchHoldResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, SwitchDTO{Enable: enable, Changed: resp.Changed})
}

func (s *Server) DispatchDryRunHandler(c echo.Context) error {
	enable, err := enableParam(c)
	if err != nil {
		return err
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.DispatchDryRunRequest{Enable: enable}, actorRequestTimeout).Result()
	if err != nil {
		return s.unavailable(err)
	}
	resp, ok := res.(domain.DispatchDryRunResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, SwitchDTO{Enable: enable, Changed: resp.Changed})
}

func (s *Server) ReloadTariffHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ReloadTariffRequest{}, actorRequestTimeout).Result()
	if err != nil {
		return s.unavailable(err)
	}
	resp, ok := res.(domain.ReloadTariffResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
	dto := ReloadDTO{Rates: resp.Rates, LoadedAt: resp.LoadedAt}
	if resp.HasResponseError() {
		dto.Error = resp.GetResponseError().Error()
		return c.JSON(http.StatusUnprocessableEntity, dto)
	}
	return c.JSON(http.StatusOK, dto)
}

// HistoryHandler serves the last ?limit=N dispatch ticks, newest first.
func (s *Server) HistoryHandler(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxHistoryLimit)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), actorRequestTimeout)
	defer cancel()
	recs, err := s.recorder.Recent(ctx, limit)
	if err != nil {
		s.logger.Error("history query failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
	out := make([]DispatchRecordDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, DispatchRecordToDTO(rec))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) unavailable(err error) error {
	s.logger.Warn("actor request failed", zap.Error(err))
	return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
}

func enableParam(c echo.Context) (bool, error) {
	var body struct {
		Enable *bool `json:"enable"`
	}
	if err := c.Bind(&body); err != nil || body.Enable == nil {
		return false, echo.NewHTTPError(http.StatusBadRequest, `body must be {"enable": true|false}`)
	}
	return *body.Enable, nil
}
