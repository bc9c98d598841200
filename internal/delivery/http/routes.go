package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ecolens/backend/config"
)

// maxRequestBodyBytes bounds page snapshots
const maxRequestBodyBytes = 8 << 20

// SetupRouter creates and configures the Gin router. metrics may be nil.
func SetupRouter(cfg *config.Config, handler *Handler, metrics http.Handler, logger *zap.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	router.Use(BodyLimitMiddleware(maxRequestBodyBytes))

	router.GET("/health", handler.HealthCheck)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	// Sustainability endpoints used by the extension popup
	router.POST("/product_info", handler.GetProductInfo)
	router.POST("/recommendations", handler.GetRecommendations)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/detect", handler.Detect)

		contexts := v1.Group("/contexts")
		{
			contexts.POST("/:id/snapshots", handler.PostSnapshot)
			contexts.GET("/:id", handler.GetContext)
			contexts.DELETE("/:id", handler.DeleteContext)
		}

		settings := v1.Group("/settings")
		{
			settings.GET("/auto-popup", handler.GetAutoPopup)
			settings.PUT("/auto-popup", handler.PutAutoPopup)
		}
	}

	return router
}
