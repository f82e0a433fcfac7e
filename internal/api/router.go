// Package api exposes the operational HTTP surface: job control, source
// inventory, run history, and health.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gigharvest/internal/logger"
)

const corsMaxAge = 12 * time.Hour

// NewRouter builds the gin engine with all routes registered.
func NewRouter(h *Handler, log logger.Interface) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Content-Length", "Accept-Encoding",
			"Authorization", "Cache-Control",
		},
		MaxAge: corsMaxAge,
	}))
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	router.GET("/health", h.Health)

	v1 := router.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		jobs.GET("", h.ListJobs)
		jobs.POST("/:source/trigger", h.TriggerJob)
		jobs.POST("/:source/start", h.StartJob)
		jobs.POST("/:source/stop", h.StopJob)

		v1.GET("/sources", h.ListSources)
		v1.GET("/runs/:source", h.RunHistory)
		v1.GET("/metrics", h.Metrics)
	}

	return router
}

func ginLogger(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.Info("HTTP request",
			"method", method,
			"path", path,
			"status_code", c.Writer.Status(),
			"client_ip", c.ClientIP(),
			"duration", time.Since(start),
		)
	}
}

// errorResponse is the uniform error body.
func errorResponse(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// okResponse is the uniform acknowledgement body.
func okResponse(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"status": msg})
}
