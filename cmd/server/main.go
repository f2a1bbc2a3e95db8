package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"mapsearch/internal/api"
	"mapsearch/internal/api/handlers"
	"mapsearch/internal/config"
	"mapsearch/internal/engine"
	"mapsearch/internal/metrics"
	"mapsearch/internal/repository/memory"
)

func main() {
	// Load configuration (.env + environment overrides)
	cfg := config.Load()

	// Register prometheus metrics
	metrics.Register()

	// Initialize the session store and notifier
	sessionRepo := memory.NewSessionRepository()
	notifier := engine.NewNotifier()

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(sessionRepo, cfg, notifier)

	// Setup router
	router := api.NewRouter(sessionHandler)

	// Create Gin engine
	ginEngine := gin.Default()
	router.Setup(ginEngine)

	// Start server
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      ginEngine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	log.Printf("Starting map search visibility server on %s", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
