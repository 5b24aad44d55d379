package operator

import (
	"github.com/gin-gonic/gin"

	"codeberg.org/motorline/relay/internal/auth"
	"codeberg.org/motorline/relay/internal/relay"
)

// registers operator-only routes behind JWT auth and the role check
func RegisterRoutes(router *gin.RouterGroup, hub *relay.Hub) {
	operatorGroup := router.Group("/operator")
	operatorGroup.Use(auth.AuthMiddleware(), auth.OperatorOnly())
	{
		operatorGroup.GET("/status", StatusHandler(hub))
	}
}
