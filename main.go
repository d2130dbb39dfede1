package main

import (
	"log"
	"time"

	"elementduel/config"
	"elementduel/handlers"
	"elementduel/middleware"
	"elementduel/models"
	"elementduel/routes"
	"elementduel/services"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database models
	err = db.AutoMigrate(
		&models.User{},
		&models.Match{},
		&models.GameRecord{},
	)
	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize Redis
	redisClient := config.InitRedis(cfg)

	// Initialize services
	authService := services.NewAuthService(db, cfg.JWTSecret)
	matchStore := services.NewGormMatchStore(db, redisClient)
	stateChannel := services.NewRedisStateChannel(redisClient)
	reporter := services.NewResultReporter(db)

	sessions := services.NewSessionManager(matchStore, stateChannel, services.CoordinatorOptions{
		MatchDurationSeconds: cfg.MatchDurationSeconds,
		DeckSize:             cfg.DeckSize,
		MaxErrors:            cfg.MaxErrors,
		ClockSyncTicks:       cfg.ClockSyncTicks,
		ClockTickInterval:    time.Second,
	})
	sessions.OnResult(reporter.Report)

	// Initialize WebSocket hub
	hub := services.NewHub(sessions)
	go hub.Run()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	matchHandler := handlers.NewMatchHandler(sessions, reporter)
	elementHandler := handlers.NewElementHandler()

	// Setup Gin router
	router := gin.Default()

	// Add CORS middleware
	router.Use(middleware.CORS())

	// Setup routes
	routes.SetupRoutes(router, authHandler, matchHandler, elementHandler, hub, cfg.JWTSecret)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
