package websocket

import (
	"github.com/gin-gonic/gin"

	"codeberg.org/motorline/relay/internal/relay"
)

func RegisterRoutes(router *gin.RouterGroup, hub *relay.Hub) {
	router.GET("/ws", WebSocketHandler(hub))
}
