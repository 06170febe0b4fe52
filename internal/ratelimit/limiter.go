package ratelimit

import (
	"context"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Limiter decides whether one more request from key fits its token bucket.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// Middleware limits requests per client address. Limiter errors let the request through.
func Middleware(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		ok, retry, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			log.Printf("[ratelimit][allow] key=%s err=%v", key, err)
			c.Next()
			return
		}
		if !ok {
			secs := int(math.Ceil(retry.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"message": "Too many requests. Please slow down."},
			})
			return
		}
		c.Next()
	}
}
