package server

import (
	"net/http"
	"time"

	"github.com/berfenger/gridwatch/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/api/data", s.LastSampleHandler)
	e.GET("/api/energy/range", s.EnergyRangeHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

type lastSampleResponse struct {
	Measurement any `json:"measurement"`
	Energy      any `json:"energy"`
}

func (s *Server) LastSampleHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetLastSampleRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	}
	response, ok := res.(domain.GetLastSampleResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "unexpected response"})
	}
	if response.Measurement == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no sample yet"})
	}
	return c.JSON(http.StatusOK, lastSampleResponse{
		Measurement: response.Measurement,
		Energy:      response.Sample,
	})
}

func (s *Server) EnergyRangeHandler(c echo.Context) error {
	start, err := time.Parse(time.RFC3339, c.QueryParam("start"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid start, want RFC3339"})
	}
	end, err := time.Parse(time.RFC3339, c.QueryParam("end"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid end, want RFC3339"})
	}
	if !start.Before(end) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "start must be before end"})
	}
	samples, err := s.store.Range(c.Request().Context(), start, end)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, samples)
}
