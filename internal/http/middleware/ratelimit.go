package middleware

import (
	"net/http"
	"strconv"
	"time"

	"waitlist_contest/internal/cache"
	"waitlist_contest/internal/logger"

	"github.com/gin-gonic/gin"
)

// RateLimit is a fixed-window limiter keyed by client IP.
// key format: rl:<scope>:<window_seconds>:<ip>
// A nil store or a store error lets the request through.
func RateLimit(store cache.Store, scope string, maxRequests int, window time.Duration) gin.HandlerFunc {
	windowSeconds := strconv.FormatInt(int64(window.Seconds()), 10)
	return func(c *gin.Context) {
		if store == nil || maxRequests <= 0 {
			c.Next()
			return
		}
		key := "rl:" + scope + ":" + windowSeconds + ":" + c.ClientIP()
		endpoint := scope + ":" + c.FullPath()

		val, err := store.Incr(c.Request.Context(), key, window)
		if err != nil {
			// fail-open
			logger.WithContext(c.Request.Context()).Warn("rate limiter unavailable", "error", err)
			c.Header("X-RateLimit-Error", "store-error")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(maxRequests)-val), 10))
		if val > int64(maxRequests) {
			RLBlocked.WithLabelValues(endpoint).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": int(window.Seconds()),
			})
			return
		}
		RLRequests.WithLabelValues(endpoint).Inc()
		c.Next()
	}
}
