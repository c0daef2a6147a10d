package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "hackmate/docs"
	"hackmate/pkg/config"
	"hackmate/pkg/obs"
	"hackmate/pkg/response"
)

// routeRegistrar is implemented by every package handler.
type routeRegistrar interface {
	RegisterRoutes(router gin.IRouter)
}

type routerDeps struct {
	Config   config.Config
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer
	Ready    func(ctx context.Context) error
	Handlers []routeRegistrar
}

func newRouter(d routerDeps) *gin.Engine {
	if d.Config.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	mw := obs.Middleware{Logger: d.Logger}
	router := gin.New()
	router.Use(mw.RequestID(), mw.AccessLog(), gin.CustomRecovery(func(c *gin.Context, err any) {
		d.Logger.Error("panic recovered", "error", err, "path", c.Request.URL.Path, "request_id", obs.RequestIDFromContext(c.Request.Context()))
		response.Abort(c, http.StatusInternalServerError, "internal server error")
	}))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     d.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: d.Config.CORS.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	router.NoRoute(func(c *gin.Context) {
		response.SendError(c, http.StatusNotFound, "route not found")
	})

	obs.HealthHandlers{Ready: d.Ready}.RegisterRoutes(router)
	for _, h := range d.Handlers {
		h.RegisterRoutes(router)
	}

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return router
}
