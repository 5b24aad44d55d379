package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"codeberg.org/motorline/relay/internal/auth"
	"codeberg.org/motorline/relay/internal/errors"
)

// issues a short-lived visitor credential for anonymous support chats.
// authenticated visitors get their tokens from the account system instead;
// this endpoint only covers the walk-in case.
func GuestTokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GuestTokenRequest

		// body is optional; a bare POST gets default guest identity
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				errors.BadRequest(c, "invalid request body", err)
				return
			}
		}

		displayName := req.DisplayName
		if displayName == "" {
			displayName = "Guest"
		}

		visitorID := "guest-" + uuid.NewString()

		token, err := auth.GenerateJWT(visitorID, displayName, auth.RoleVisitor)
		if err != nil {
			errors.InternalError(c, "failed to issue guest token", err)
			return
		}

		c.JSON(http.StatusOK, TokenResponse{
			Token: token,
			Role:  auth.RoleVisitor,
		})
	}
}
