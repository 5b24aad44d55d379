package websocket

import (
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"codeberg.org/motorline/relay/internal/auth"
	"codeberg.org/motorline/relay/internal/errors"
	"codeberg.org/motorline/relay/internal/logger"
	"codeberg.org/motorline/relay/internal/relay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     relay.CheckOrigin,
}

// handles websocket connections for the support-chat relay.
// a connection without a valid credential is rejected before upgrade:
// there is nothing to retry when unauthenticated.
func WebSocketHandler(hub *relay.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		var params ConnectParams
		if err := c.ShouldBindQuery(&params); err != nil {
			errors.BadRequest(c, "invalid parameters", err)
			return
		}

		claims, err := auth.ValidateJWT(params.Token)
		if err != nil {
			errors.Unauthorized(c, "valid authentication required")
			return
		}

		displayName := claims.DisplayName

		if claims.Role == auth.RoleVisitor && params.DisplayName != "" {
			displayName = params.DisplayName
		}

		if displayName == "" {
			displayName = "Anonymous"
		}

		// check connection limits before accepting new connection
		ipAddress := c.ClientIP()
		canAccept, reason := hub.CanAcceptConnection(ipAddress)

		if !canAccept {
			errors.TooManyRequests(c, reason)
			return
		}

		connID := relay.NewConnID()

		// upgrade HTTP connection to WebSocket
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.ErrorErr(err, "failed to upgrade connection",
				"conn_id", connID,
				"ip", ipAddress,
			)

			return
		}

		// track IP connection only after successful upgrade
		hub.TrackIPConnection(ipAddress)

		client := relay.NewClient(connID, claims.UserID, displayName, claims.Role, ipAddress, conn, hub)

		hub.Register <- client

		go client.WritePump()
		go client.ReadPump()

		logger.Info("websocket connection established",
			"conn_id", connID,
			"role", claims.Role,
			"user_id", claims.UserID,
			"ip", ipAddress,
		)
	}
}
