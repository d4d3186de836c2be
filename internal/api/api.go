// Package api exposes the catalog over a JSON REST interface under
// /api/v1.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	config "github.com/mirelo/sdsort/internal/config/server"
	"github.com/mirelo/sdsort/internal/filter"
	"github.com/mirelo/sdsort/internal/jobs"
	"github.com/mirelo/sdsort/internal/library"
	"github.com/mirelo/sdsort/internal/scanner"
	"github.com/mirelo/sdsort/internal/sorter"
	"github.com/mirelo/sdsort/internal/tagger"
	"github.com/mirelo/sdsort/pkg/db/store"
	"github.com/mirelo/sdsort/pkg/log"
)

// Job kinds tracked by the controller's registry.
const (
	jobKindScan = "scan"
	jobKindTag  = "tag"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	cfg      *config.BaseServerConfig
	store    store.ImageStore
	engine   *filter.Engine
	scanner  *scanner.Scanner
	runner   *tagger.Runner
	sessions *sorter.Manager
	library  *library.Library
	jobs     *jobs.Registry
	log      log.LoggerService
}

// NewController assembles the controller and registers all routes.
func NewController(cfg *config.BaseServerConfig, s store.ImageStore, engine *filter.Engine,
	scan *scanner.Scanner, runner *tagger.Runner, sessions *sorter.Manager,
	lib *library.Library, registry *jobs.Registry, logger log.LoggerService) *Controller {

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	c := &Controller{
		Echo:     e,
		Group:    e.Group("/api/v1"),
		cfg:      cfg,
		store:    s,
		engine:   engine,
		scanner:  scan,
		runner:   runner,
		sessions: sessions,
		library:  lib,
		jobs:     registry,
		log:      logger,
	}

	c.initRoutes()
	return c
}

// initRoutes registers all API endpoints
func (c *Controller) initRoutes() {
	c.Group.GET("/healthz", c.HealthCheck)

	c.initImageRoutes()
	c.initScanRoutes()
	c.initTagRoutes()
	c.initLibraryRoutes()
	c.initSessionRoutes()
}

// Start begins serving on the configured address. Blocks until the
// listener fails or Shutdown is called.
func (c *Controller) Start() error {
	return c.Echo.Start(c.cfg.HTTP.Address)
}

// Shutdown stops the HTTP listener gracefully.
func (c *Controller) Shutdown(ctx context.Context) error {
	return c.Echo.Shutdown(ctx)
}

// HealthCheck reports API and store health.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := c.store.Health(ctx.Request().Context()); err != nil {
		response["status"] = "degraded"
		response["store_error"] = err.Error()
		return ctx.JSON(http.StatusServiceUnavailable, response)
	}

	return ctx.JSON(http.StatusOK, response)
}

// HandleError logs an error and returns it as a JSON response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	c.log.Error("%s %s: %s: %v", ctx.Request().Method, ctx.Request().URL.Path, message, err)

	response := map[string]any{
		"error":   message,
		"message": err.Error(),
		"code":    code,
	}
	return ctx.JSON(code, response)
}
