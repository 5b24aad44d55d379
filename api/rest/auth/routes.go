package auth

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// registers authentication routes.
// guest tokens are rate limited per IP so the endpoint cannot be used to
// mint credentials in bulk.
func RegisterRoutes(router *gin.RouterGroup) {
	guestRate := limiter.Rate{
		Period: 1 * time.Minute,
		Limit:  10,
	}
	guestLimiter := mgin.NewMiddleware(limiter.New(memory.NewStore(), guestRate))

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/guest", guestLimiter, GuestTokenHandler())
	}
}
