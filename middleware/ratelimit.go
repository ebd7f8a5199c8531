package middleware

import (
	"net/http"
	"sync"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter hands out a token bucket per client key.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mutex    sync.Mutex
	rps      rate.Limit
	burst    int
}

// NewRateLimiter creates a rate limiter with the given refill rate and burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow checks if a request from the given key should be allowed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mutex.Lock()
	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.rps, rl.burst)
		rl.limiters[key] = limiter
	}
	rl.mutex.Unlock()

	return limiter.Allow()
}

// RateLimitMiddleware limits report submissions per client IP.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	limiter := NewRateLimiter(rps, burst)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if !limiter.Allow(clientIP) {
			log.Warnf("rate limit exceeded for IP: %s", clientIP)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfterSeconds(rps),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// retryAfterSeconds is the time until a drained bucket earns one token back.
func retryAfterSeconds(rps float64) int {
	if rps <= 0 {
		return 1
	}
	seconds := int(1 / rps)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}
