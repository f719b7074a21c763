package routes

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/figma-chunkstore/chunkstore/internal/config"
	"github.com/figma-chunkstore/chunkstore/internal/storage"
	"github.com/figma-chunkstore/chunkstore/internal/telemetry"
	"github.com/figma-chunkstore/chunkstore/middleware"
	"github.com/figma-chunkstore/chunkstore/services"
)

// NewRouter builds the gin.Engine serving the admin HTTP surface:
// request-id tagging, CORS, request metrics, then the chunk routes.
func NewRouter(cfg *config.Config, chunker *services.Chunker, manager *storage.Manager, metrics *telemetry.Metrics, logger *slog.Logger) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	router.Use(requestMetricsMiddleware(metrics))

	SetupAdminRoutes(router, chunker, manager)
	return router
}

func requestMetricsMiddleware(metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if metrics == nil {
			return
		}
		status := c.Writer.Status()
		metrics.RecordRequest(c.Request.Method, c.FullPath(), strconv.Itoa(status), time.Since(start).Seconds())
	}
}
