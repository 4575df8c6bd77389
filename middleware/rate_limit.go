package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/effectmoe/contract-system/pkg/apperr"
	"github.com/effectmoe/contract-system/pkg/logger"
	"github.com/effectmoe/contract-system/pkg/metrics"
	"github.com/effectmoe/contract-system/service"
)

// RateLimit limits each client IP to limit calls per window on one route.
// Counters are keyed by route name, so routes do not share budgets.
func RateLimit(limiter *service.RateLimiter, route string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := route + ":" + c.ClientIP()

		d := limiter.CheckLimit(ctx, key, limit, window)
		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.ResetAt.IsZero() {
			c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		}

		if !d.Allowed {
			metrics.RateLimited(route)
			logger.Warn(ctx, "rate limit exceeded",
				"route", route,
				"client_ip", c.ClientIP(),
				"count", d.Count,
				"limit", d.Limit,
			)
			if !d.ResetAt.IsZero() {
				retry := int(time.Until(d.ResetAt).Seconds()) + 1
				c.Header("Retry-After", strconv.Itoa(max(retry, 1)))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": apperr.MsgRateLimited})
			return
		}

		c.Next()
	}
}
