package operator

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"codeberg.org/motorline/relay/internal/relay"
)

// StatusResponse describes the relay from the operator's point of view
type StatusResponse struct {
	OperatorOnline bool `json:"operator_online"`
	VisitorCount   int  `json:"visitor_count"`
}

// reports whether an operator is connected and how many visitors are
// waiting or chatting. Used by the console and by ops dashboards.
func StatusHandler(hub *relay.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, StatusResponse{
			OperatorOnline: hub.Operator() != nil,
			VisitorCount:   hub.VisitorCount(),
		})
	}
}
