package routes

import (
	"eam/internal/core/container"
	"eam/internal/middleware"
	"eam/internal/session"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// uncompressedPaths stream upstream or binary bodies as they are.
var uncompressedPaths = []string{
	"/api/proxy",
	"/api/image-proxy",
	"/api/attachments/files",
	"/metrics",
}

// NewRouter builds the engine with the global middleware chain, the JSON API
// under /api and the pages at the root.
func NewRouter(c *container.Container) *gin.Engine {
	cfg := c.Config.Server
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(c.Logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(c.Logger))
	router.Use(middleware.Metrics(c.Metrics))
	router.Use(middleware.CORS())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths(uncompressedPaths)))
	router.Use(session.Middleware(cfg.SecureCookies))
	router.Use(middleware.MaintenanceGate(c.Checker, c.Config.Maintenance.Timeout, c.Metrics, c.Logger))
	if cfg.RequestTimeout > 0 {
		router.Use(middleware.TimeoutMiddleware(cfg.RequestTimeout))
	}

	RegisterUtilityRoutes(router, c)
	RegisterAPIRoutes(router.Group("/api"), c)
	c.PagesHandler.RegisterRoutes(&router.RouterGroup)

	return router
}

func RegisterAPIRoutes(api *gin.RouterGroup, c *container.Container) {
	c.HealthHandler.RegisterRoutes(api)
	c.SessionHandler.RegisterRoutes(api)
	c.WorkOrderHandler.RegisterRoutes(api)
	c.AttachmentsHandler.RegisterRoutes(api)
	c.SuggestHandler.RegisterRoutes(api)
	c.ProxyHandler.RegisterRoutes(api)
}

func RegisterUtilityRoutes(router *gin.Engine, c *container.Container) {
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(c.Metrics.Registry, promhttp.HandlerOpts{})))
}
