package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of requests allowed per minute per key.
	RequestsPerMinute int
	// KeyFunc extracts the rate limit key from a request. Defaults to client IP,
	// which maps to one clinic workstation per key.
	KeyFunc func(*gin.Context) string
}

// RateLimit returns a Gin middleware that applies per-key sliding-window rate
// limiting. Audio submissions are heavyweight, so the limit guards the
// pipeline rather than the handler itself.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPBasedKey
	}

	rl := &rateLimiter{
		windows: make(map[string][]time.Time),
		limit:   cfg.RequestsPerMinute,
	}
	go rl.evictLoop()

	return func(c *gin.Context) {
		if !rl.allow(cfg.KeyFunc(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// IPBasedKey extracts the client IP for use as a rate limit key.
func IPBasedKey(c *gin.Context) string {
	return c.ClientIP()
}

type rateLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limit   int
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	window := pruneWindow(rl.windows[key], now.Add(-time.Minute))
	if len(window) >= rl.limit {
		rl.windows[key] = window
		return false
	}
	rl.windows[key] = append(window, now)
	return true
}

// evictLoop drops idle keys so the window map does not grow with every
// workstation that ever connected.
func (rl *rateLimiter) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-time.Minute)
		for key, window := range rl.windows {
			pruned := pruneWindow(window, cutoff)
			if len(pruned) == 0 {
				delete(rl.windows, key)
			} else {
				rl.windows[key] = pruned
			}
		}
		rl.mu.Unlock()
	}
}

func pruneWindow(window []time.Time, cutoff time.Time) []time.Time {
	var kept []time.Time
	for _, t := range window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
