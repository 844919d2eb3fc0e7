package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qa-reports-api/internal/service"
	"github.com/noah-isme/qa-reports-api/pkg/response"
)

// RateLimit enforces a fixed-window budget per caller (or client ip when anonymous).
func RateLimit(limiter *service.RateLimiter, action string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		subject := service.SubjectKey(Claims(c), c.ClientIP())
		if err := limiter.Check(c.Request.Context(), action, subject, limit, window); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
