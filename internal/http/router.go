package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"go.ngs.io/nearest-api/internal/usecase"
)

const requestIDHeader = "X-Request-ID"

// RouterOptions configures cross-cutting middleware.
type RouterOptions struct {
	// AllowedOrigins for CORS. Empty allows all origins.
	AllowedOrigins []string
	Logger         log.FieldLogger
}

// SetupRouter creates and configures the Gin router.
func SetupRouter(rankUC *usecase.RankUseCase, referenceUC *usecase.ReferenceUseCase, opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(logger))

	// Setup CORS middleware.
	corsConfig := cors.DefaultConfig()
	if len(opts.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = opts.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.ExposeHeaders = []string{requestIDHeader, "Content-Disposition"}
	router.Use(cors.New(corsConfig))

	// Create handler.
	handler := NewHandler(rankUC, referenceUC, logger)

	// API v1 routes.
	v1 := router.Group("/v1")
	v1.POST("/rank", handler.Rank)
	v1.POST("/rank/upload", handler.RankUpload)
	v1.GET("/geocode", handler.Geocode)

	// Health check.
	router.GET("/health", handler.HealthCheck)

	return router
}

// requestID propagates or assigns an X-Request-ID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger log.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(log.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
		}).Info("action: http_request | result: done")
	}
}
