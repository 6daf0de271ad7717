package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/rmitchellscott/couchpilot/internal/config"
	"github.com/rmitchellscott/couchpilot/internal/logging"
)

// DeviceRateLimiter throttles the agent-facing endpoints per device API key.
// An agent polling on its configured interval stays well under the limit; a
// runaway loop or a key being brute-forced does not.
type DeviceRateLimiter struct {
	limiters map[string]*deviceLimiter
	mutex    sync.Mutex
	limit    rate.Limit
	burst    int
}

type deviceLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewDeviceRateLimiter creates a rate limiter for agent endpoints. The default
// of 2 requests/second with burst 10 leaves room for a poll, check-in and a
// batch of failure reports inside one agent cycle.
func NewDeviceRateLimiter() *DeviceRateLimiter {
	rl := &DeviceRateLimiter{
		limiters: make(map[string]*deviceLimiter),
		limit:    rate.Limit(config.GetInt("DEVICE_RATE_LIMIT_RPS", 2)),
		burst:    config.GetInt("DEVICE_RATE_LIMIT_BURST", 10),
	}

	// Drop limiters for devices not seen in an hour
	go rl.cleanupRoutine()

	return rl
}

// RateLimit enforces the per-device limit, keyed by the Access-Token header.
// Requests without a token fall through; device auth rejects those anyway.
func (rl *DeviceRateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("Access-Token")
		if key == "" {
			c.Next()
			return
		}

		if !rl.allow(key) {
			logging.WarnWithComponent(logging.ComponentPoll, "Device rate limit exceeded", "ip", c.ClientIP())
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (rl *DeviceRateLimiter) allow(key string) bool {
	rl.mutex.Lock()
	dl, ok := rl.limiters[key]
	if !ok {
		dl = &deviceLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = dl
	}
	dl.lastSeen = time.Now()
	rl.mutex.Unlock()

	return dl.limiter.Allow()
}

func (rl *DeviceRateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		rl.cleanup(time.Hour)
	}
}

func (rl *DeviceRateLimiter) cleanup(maxIdle time.Duration) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	for key, dl := range rl.limiters {
		if now.Sub(dl.lastSeen) >= maxIdle {
			delete(rl.limiters, key)
		}
	}
}
