package main

import (
	"github.com/gin-gonic/gin"

	"codeberg.org/motorline/relay/internal/config"
	"codeberg.org/motorline/relay/internal/relay"
)

// holds all dependencies and state for the relay server
type Server struct {
	config *config.Config
	hub    *relay.Hub
	router *gin.Engine
}
