package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"civicdesk/backend/internal/metrics"
	"civicdesk/backend/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// KeyFunc derives the limiter key for a request.
type KeyFunc func(c *gin.Context) string

// ByIP keys on the normalized client address.
func ByIP(c *gin.Context) string {
	return ratelimit.IPKey(c.ClientIP())
}

// ByIdentity keys on the client address plus the most specific identity
// available: the authenticated user, then the :id route param, then the
// citizen_id form field.
func ByIdentity(c *gin.Context) string {
	identity := ""
	if claims := CurrentUser(c); claims != nil {
		identity = "user:" + strconv.FormatUint(uint64(claims.UserID), 10)
	} else if id := c.Param("id"); id != "" {
		identity = id
	} else if id := c.PostForm("citizen_id"); id != "" {
		identity = id
	}
	return ratelimit.IdentityKey(ByIP(c), identity)
}

// RateLimit admits requests through limiter. A limiter error lets the request
// through and logs a warning.
func RateLimit(tier string, limiter ratelimit.Limiter, key KeyFunc, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := limiter.Allow(c.Request.Context(), key(c))
		if err != nil {
			log.Warn("rate limiter unavailable, failing open", zap.String("tier", tier), zap.Error(err))
			c.Next()
			return
		}

		if res.Limit >= 0 {
			h := c.Writer.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.ResetAt.IsZero() {
				h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			}
		}

		if !res.Allowed {
			metrics.RateLimitRejections.WithLabelValues(tier).Inc()
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(res.RetryAfter)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}
		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
