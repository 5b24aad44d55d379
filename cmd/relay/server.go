package main

import (
	"github.com/gin-gonic/gin"

	"codeberg.org/motorline/relay/internal/config"
	"codeberg.org/motorline/relay/internal/relay"
)

// creates and configures a new relay server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	hub := relay.NewHub()
	relay.RegisterHandlers(hub)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	server := &Server{
		config: cfg,
		hub:    hub,
		router: router,
	}

	RegisterRoutes(router, server)

	return server, nil
}
