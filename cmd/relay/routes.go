package main

import (
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"codeberg.org/motorline/relay/api/rest/auth"
	"codeberg.org/motorline/relay/api/rest/health"
	"codeberg.org/motorline/relay/api/rest/operator"
	"codeberg.org/motorline/relay/api/websocket"
)

// sets up all API routes and middleware
func RegisterRoutes(router *gin.Engine, server *Server) {
	router.Use(corsMiddleware())
	router.GET("/health", health.Handler)

	v1 := router.Group("/api/v1")

	{
		auth.RegisterRoutes(v1)
		operator.RegisterRoutes(v1, server.hub)
		websocket.RegisterRoutes(v1, server.hub)
	}
}

func corsMiddleware() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			cfg.AllowOrigins = append(cfg.AllowOrigins, strings.TrimSpace(origin))
		}
	} else {
		cfg.AllowAllOrigins = true
	}

	return cors.New(cfg)
}
