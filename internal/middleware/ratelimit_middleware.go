package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"factory-ops/internal/redis"
	"factory-ops/internal/services"
	"factory-ops/internal/transport/httpdto"
	"factory-ops/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Limiter is satisfied by redis.RateLimiter.
type Limiter interface {
	Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (*redis.RateLimitResult, error)
}

// UserRateLimit caps an authenticated route per user. When the limiter
// itself fails the request is let through.
func UserRateLimit(limiter Limiter, scope string, limit int, window time.Duration, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := services.UserIDFromContext(c.Request.Context())
		if !ok || limiter == nil {
			c.Next()
			return
		}

		result, err := limiter.Allow(c.Request.Context(), scope, userID.String(), limit, window)
		if err != nil {
			if l != nil {
				l.WithContext(c.Request.Context()).Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
			}
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))

		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("rate limit exceeded", "RATE_LIMITED"))
			return
		}
		c.Next()
	}
}
