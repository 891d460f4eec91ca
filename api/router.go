package api

import (
	"mediagen/config"
	"mediagen/task"

	"github.com/gin-gonic/gin"
)

func SetupRouter(m *task.Manager, cfg *config.Config) *gin.Engine {
	r := gin.Default()
	h := NewHandler(m, cfg)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg))
	{
		v1.POST("/generations", h.handleCreateGeneration)
		v1.GET("/generations", h.handleListGenerations)
		v1.GET("/generations/:taskId", h.handleGetGeneration)
		v1.GET("/events", h.handleStreamEvents)
		v1.DELETE("/generations/:taskId", h.handleCancelGeneration)
	}
	return r
}
