package routes

import (
	"log"
	"net/http"

	"elementduel/handlers"
	"elementduel/middleware"
	"elementduel/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

func SetupRoutes(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	matchHandler *handlers.MatchHandler,
	elementHandler *handlers.ElementHandler,
	hub *services.Hub,
	jwtSecret string,
) {
	// API routes
	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// Static reference data (public)
		api.GET("/elements", elementHandler.ListElements)

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			// User profile
			protected.GET("/auth/profile", authHandler.GetProfile)

			// Match routes
			matches := protected.Group("/matches")
			{
				matches.POST("/find", matchHandler.FindGame)
				matches.POST("/answer", matchHandler.AnswerQuestion)
				matches.POST("/leave", matchHandler.LeaveGame)
				matches.GET("/current", matchHandler.GetCurrentMatch)
				matches.GET("/current/question", matchHandler.GetCurrentQuestion)
				matches.GET("/history", matchHandler.GetHistory)
			}
		}
	}

	// WebSocket endpoint for real-time match state. Browsers cannot set
	// headers on websocket upgrades, so the token rides in the query.
	router.GET("/ws", func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
			return
		}

		userID, err := middleware.ParseToken(token, jwtSecret)
		if err != nil {
			log.Printf("WebSocket token rejected: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for user %d: %v", userID, err)
			return
		}

		log.Printf("WebSocket connection established for user %d", userID)
		hub.RegisterClient(conn, userID)
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
