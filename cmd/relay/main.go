package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skillsync/session-relay/config"
	"github.com/skillsync/session-relay/internal/handlers"
	"github.com/skillsync/session-relay/internal/middleware"
	"github.com/skillsync/session-relay/internal/redis"
	"github.com/skillsync/session-relay/internal/registry"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect to Redis
	store, err := redis.Connect(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer store.Close()

	log.Println("Redis connection established")

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Global CORS middleware (runs before routing)
	router.Use(handlers.OriginFilter(cfg.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	reg := registry.New()
	relay := handlers.NewRelay(reg, store, cfg.Relay, cfg.JWTSecret)
	sessions := handlers.NewSessions(store)

	// Session registration API (authenticated)
	apiGroup := router.Group("/api")
	{
		// Login endpoint (public)
		apiGroup.POST("/auth/login", handlers.Login(cfg.JWTSecret))

		// Register session (requires JWT)
		apiGroup.POST("/sessions", middleware.JWTAuth(cfg.JWTSecret), sessions.Create)

		// Get session info (public) - accepts id or join code
		apiGroup.GET("/sessions/:sessionId", sessions.Get)

		// Delete session (requires JWT, creator only)
		apiGroup.DELETE("/sessions/:sessionId", middleware.JWTAuth(cfg.JWTSecret), sessions.Delete)
	}

	// WebSocket signaling endpoint
	router.GET("/ws", relay.HandleSignaling)

	// Periodic session census for debugging
	go func() {
		for range time.Tick(30 * time.Second) {
			census := reg.Census()
			log.Printf("Active sessions: %d", len(census))
			for sessionID, count := range census {
				log.Printf("Session %s: %d participants", sessionID, count)
			}
		}
	}()

	// Start server
	log.Printf("Starting session relay on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
