package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/actor"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// ActorFromHeaders trusts the upstream gateway's identity headers. Requests
// without them are rejected before reaching any service.
func ActorFromHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderActorID))
		role := strings.TrimSpace(c.GetHeader(HeaderActorRole))
		if id == "" || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{
				Error: errorPayload{Type: "unauthorized", Message: "missing actor identity"},
			})
			return
		}

		ctx := actor.WithActor(c.Request.Context(), actor.Actor{ID: id, Role: role})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// PublicPayRateLimit throttles anonymous payment traffic per source IP.
func (s *Server) PublicPayRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.payLimiter.Enabled() {
			c.Next()
			return
		}

		allowed, retryAfter, err := s.payLimiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			// Redis trouble must not take the payment page down.
			s.log.Warn("rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if !allowed {
			if retryAfter > 0 {
				c.Header("Retry-After", retryAfter.Round(1e9).String())
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
				Error: errorPayload{Type: "rate_limited", Message: "too many requests"},
			})
			return
		}
		c.Next()
	}
}
