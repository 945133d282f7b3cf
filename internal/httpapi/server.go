// Package httpapi exposes the university cache over HTTP for web clients.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leonardcser/campus-mcp/internal/logger"
	"github.com/leonardcser/campus-mcp/internal/tools"
	"github.com/leonardcser/campus-mcp/internal/university"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type Server struct {
	echo    *echo.Echo
	catalog tools.Catalog
}

// New wires routes for catalog. gatherer backs /metrics; nil uses the default registry.
func New(catalog tools.Catalog, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, catalog: catalog}
	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	g := e.Group("/universities")
	g.GET("", s.list)
	g.GET("/search", s.search)
	g.GET("/status", s.status)
	g.DELETE("/cache", s.clearCache)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) Start(addr string) error {
	logger.Infof("Starting HTTP API on %s", addr)
	srv := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if err := s.echo.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type statusResponse struct {
	Status  string `json:"status,omitempty"`
	Loading bool   `json:"loading"`
	Loaded  int    `json:"loaded"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{Status: "ok", Loading: s.catalog.IsLoading(), Loaded: s.catalog.LoadedCount()})
}

func (s *Server) status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{Loading: s.catalog.IsLoading(), Loaded: s.catalog.LoadedCount()})
}

func (s *Server) search(c echo.Context) error {
	results, err := s.catalog.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return loadFailed(c, err)
	}
	return c.JSON(http.StatusOK, nonNil(results))
}

func (s *Server) list(c echo.Context) error {
	limit := defaultLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
		}
		limit = min(n, maxLimit)
	}
	all, err := s.catalog.All(c.Request().Context())
	if err != nil {
		return loadFailed(c, err)
	}
	return c.JSON(http.StatusOK, tools.FilterByCountry(all, c.QueryParam("country"), limit))
}

func (s *Server) clearCache(c echo.Context) error {
	if err := s.catalog.ClearCache(); err != nil {
		logger.Errorf("Clearing university cache failed: %v", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

func loadFailed(c echo.Context, err error) error {
	return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
}

func nonNil(list []university.University) []university.University {
	if list == nil {
		return []university.University{}
	}
	return list
}
