package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pronote-app/messagerie-backend/internal/common"
	"github.com/pronote-app/messagerie-backend/internal/domain"
	"github.com/pronote-app/messagerie-backend/internal/service"
)

// EnforceRateLimit throttles the named action per authenticated identity,
// falling back to IP + user-agent hash for anonymous callers. Refusals get a
// 429 with a Retry-After hint; store failures let the request through.
func EnforceRateLimit(limiter *service.RateLimiter, action string, maxAttempts int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var idPtr *domain.Identity
		if id, ok := GetIdentity(c); ok {
			idPtr = &id
		}

		key := service.RateLimitKey(idPtr, c.ClientIP(), c.Request.UserAgent(), action)
		result := limiter.Check(c.Request.Context(), key, maxAttempts, window)

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxAttempts))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))

		if !result.Allowed {
			retryAfter := int(result.RetryAfter / time.Second)
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			rateLimitRefusals.WithLabelValues(action).Inc()
			common.AbortError(c, http.StatusTooManyRequests, common.ErrRateLimited.Error())
			return
		}

		c.Next()
	}
}
