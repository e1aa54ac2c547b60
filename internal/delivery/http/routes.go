package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shadematch/backend/config"
	"github.com/shadematch/backend/internal/metrics"
)

// SetupRouter creates and configures the Gin router.
// limiter may be nil to disable per-IP rate limiting.
func SetupRouter(cfg *config.Config, handler *Handler, log *zap.Logger, limiter *RateLimiter) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if cfg.Server.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = cfg.Server.MaxUploadBytes
	}

	// Global middleware
	router.Use(RecoveryMiddleware(log))
	router.Use(LoggerMiddleware(log))
	router.Use(metrics.Middleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	if limiter != nil {
		v1.Use(limiter.Middleware())
	}
	{
		v1.POST("/recommendations", handler.Recommend)

		catalog := v1.Group("/catalog/:skinTone")
		{
			catalog.GET("", handler.Browse)
			catalog.GET("/filters", handler.FilterChoices)
			catalog.GET("/products", handler.Products)
		}
	}

	return router
}
