package api

import (
	"github.com/gin-gonic/gin"

	"mapsearch/internal/api/handlers"
	"mapsearch/internal/api/middleware"
	"mapsearch/internal/metrics"
)

type Router struct {
	sessionHandler *handlers.SessionHandler
}

func NewRouter(sessionHandler *handlers.SessionHandler) *Router {
	return &Router{
		sessionHandler: sessionHandler,
	}
}

func (r *Router) Setup(engine *gin.Engine) {
	// Health check endpoint
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Prometheus metrics
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Protected routes
	api := engine.Group("/")
	api.Use(middleware.ClientAuth())
	{
		api.POST("/session", r.sessionHandler.CreateSession)
		api.DELETE("/session/:id", r.sessionHandler.DeleteSession)
		api.POST("/session/:id/results", r.sessionHandler.DeliverResults)
		api.POST("/session/:id/marker/:key/press", r.sessionHandler.MarkerPress)

		// Renderer websocket. Authenticated like the rest: the embedding
		// app opens it with the same X-Client-ID header.
		api.GET("/session/:id/renderer", r.sessionHandler.Renderer)
	}

	// Debug endpoints (no auth for testing)
	debug := engine.Group("/debug")
	{
		debug.GET("/session/:id/state", r.sessionHandler.GetState)
	}
}
