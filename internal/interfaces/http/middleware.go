package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/providencia/approvals/internal/domain/entity"
)

// Headers set by the authenticating gateway in front of the service
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorName = "X-Actor-Name"
	HeaderActorRole = "X-Actor-Role"
	HeaderCompanyID = "X-Company-ID"
)

const actorKey = "actor"

// actorMiddleware reads the staff identity from the request headers. Requests
// without an actor id carry no actor; services decide whether one is required.
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if id != "" {
			c.Set(actorKey, &entity.Actor{
				ID:        id,
				Name:      strings.TrimSpace(c.GetHeader(HeaderActorName)),
				Role:      strings.TrimSpace(c.GetHeader(HeaderActorRole)),
				CompanyID: strings.TrimSpace(c.GetHeader(HeaderCompanyID)),
			})
		}
		c.Next()
	}
}

// actorFrom returns the request's actor, or nil
func actorFrom(c *gin.Context) *entity.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(*entity.Actor); ok {
			return actor
		}
	}
	return nil
}

// corsMiddleware adds CORS headers for the customer-facing pages
func corsMiddleware() gin.HandlerFunc {
	allowHeaders := strings.Join([]string{"Content-Type", "Authorization", HeaderActorID, HeaderActorName, HeaderActorRole, HeaderCompanyID}, ", ")
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", allowHeaders)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
