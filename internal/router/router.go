package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Brownie44l1/waste-classifier/internal/handlers"
	"github.com/Brownie44l1/waste-classifier/internal/middleware"
)

// Options tune the router without touching handler wiring.
type Options struct {
	MaxUploadBytes int64
}

// Setup creates and configures the Gin router
func Setup(classifier handlers.Classifier, modelPath string, logger *zap.Logger, opts Options) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS())
	router.Use(middleware.Metrics())

	if opts.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = opts.MaxUploadBytes
	}

	handler := handlers.NewHandler(classifier, modelPath, logger)

	router.GET("/health", handler.Health)
	router.GET("/labels", handler.Labels)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limited := router.Group("", middleware.BodyLimit(opts.MaxUploadBytes))
	{
		limited.POST("/classify", handler.Classify)
		limited.POST("/predict", handler.Predict)
	}

	return router
}
