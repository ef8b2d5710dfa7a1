package httptransport

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nurbekov/engage-scheduler/internal/transport/http/handler"
	"github.com/nurbekov/engage-scheduler/internal/transport/http/middleware"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(logger *slog.Logger, ops *handler.OpsHandler, healthHandler *handler.HealthHandler, hmacKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RunID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMW := middleware.Auth(hmacKey)

	v1 := r.Group("/v1", authMW)
	v1.GET("/window", ops.Window)
	v1.POST("/profiles/:id/run", ops.Run)
	v1.POST("/reload", ops.Reload)

	return r
}
