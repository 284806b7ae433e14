package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mocklab/mockgate/internal/config"
	"github.com/mocklab/mockgate/internal/middleware"
	"github.com/mocklab/mockgate/internal/service"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Mock     *MockHandler
	Entity   *EntityHandler
	Endpoint *EndpointHandler
	Traffic  *TrafficHandler
	Stream   *StreamHandler
}

func RegisterRoutes(r *gin.Engine, cfg *config.Config, manager *service.EntityManager, h Handlers) {
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.RequestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "mockgate"})
	})
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}
	r.GET("/placeholders", Placeholders)

	// Mock traffic
	r.Any("/api/*path",
		middleware.EntityResolver(manager),
		middleware.APIKeyMiddleware(cfg),
		middleware.RateLimitMiddleware(manager),
		h.Mock.Serve,
	)

	// Traffic viewers
	viewer := middleware.ViewerMiddleware(manager)
	r.GET("/entities/:id/logs", viewer, h.Traffic.List)
	r.GET("/ws/logs/:id", viewer, h.Stream.Subscribe)

	admin := r.Group("/admin")
	admin.Use(middleware.AdminMiddleware(cfg))
	{
		admin.GET("/entities", h.Entity.List)
		admin.POST("/entities", h.Entity.Create)
		admin.GET("/entities/:id", h.Entity.Get)
		admin.PATCH("/entities/:id", h.Entity.Update)
		admin.DELETE("/entities/:id", h.Entity.Delete)
		admin.POST("/entities/:id/share", h.Entity.Share)
		admin.DELETE("/entities/:id/share/:user", h.Entity.Unshare)
		admin.DELETE("/entities/:id/logs", h.Traffic.Clear)

		admin.GET("/entities/:id/endpoints", h.Endpoint.List)
		admin.POST("/entities/:id/endpoints", h.Endpoint.Create)
		admin.GET("/endpoints/:id", h.Endpoint.Get)
		admin.PUT("/endpoints/:id", h.Endpoint.Update)
		admin.DELETE("/endpoints/:id", h.Endpoint.Delete)
		admin.GET("/endpoints/:id/logs", h.Traffic.ListByEndpoint)
		admin.POST("/endpoints/:id/switch-scenario/:index", h.Endpoint.SwitchScenario)
	}
}
