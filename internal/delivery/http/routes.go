package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/pricelens/catalog/config"
	"github.com/pricelens/catalog/internal/logging"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *slog.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(logging.RequestLogger(logger))
	router.Use(CORSMiddleware(NewCORSPolicy(cfg.Server)))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		imports := v1.Group("/imports")
		{
			imports.POST("", handler.ImportBatch)
			imports.POST("/:ean", handler.ImportProduct)
		}
	}

	return router
}
