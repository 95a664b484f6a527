package chat_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cuenta-expense-bot/internal/chat_gateway/handler"
	"github.com/cuenta-expense-bot/internal/chat_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	messageHandler *handler.MessageHandler,
	inspectionHandler *handler.InspectionHandler,
) {
	// CorrelationID runs first so the other middleware can log it.
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Chat transport webhook
		v1.POST("/messages", messageHandler.Ingest)

		// Operational inspection of a thread's history
		threads := v1.Group("/threads")
		{
			threads.GET("/:thread_id/attempts", inspectionHandler.ListAttempts)
			threads.GET("/:thread_id/retries", inspectionHandler.ListRetryJobs)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
