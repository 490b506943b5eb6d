package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"immo-backoffice/internal/config"
)

// idleTTL is how long an unused caller bucket is kept
const idleTTL = 10 * time.Minute

// RateLimiter keeps one token bucket per caller key
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	enabled bool

	mu      sync.Mutex
	callers map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerMinute per caller with the given burst
func NewRateLimiter(requestsPerMinute, burst int, enabled bool) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:   burst,
		enabled: enabled,
		callers: make(map[string]*bucket),
		now:     time.Now,
	}
}

// FromConfig creates a limiter from the rate_limit config section
func FromConfig(cfg config.RateLimitConfig) *RateLimiter {
	return NewRateLimiter(cfg.RequestsPerMinute, cfg.Burst, cfg.Enabled)
}

// AllowRequest reports whether key may make a request now
func (rl *RateLimiter) AllowRequest(key string) bool {
	if !rl.enabled {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.callers[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.callers[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Sweep drops buckets idle for longer than idleTTL and returns how many were removed
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idleTTL)
	removed := 0
	for key, b := range rl.callers {
		if b.lastSeen.Before(cutoff) {
			delete(rl.callers, key)
			removed++
		}
	}
	return removed
}

// GetStats returns current rate limiter statistics
func (rl *RateLimiter) GetStats() Stats {
	if !rl.enabled {
		return Stats{Enabled: false}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	return Stats{
		Enabled:        true,
		TrackedCallers: len(rl.callers),
		LimitPerMinute: int(math.Round(float64(rl.limit) * 60)),
		Burst:          rl.burst,
	}
}

// Stats contains rate limiter statistics
type Stats struct {
	Enabled        bool `json:"enabled"`
	TrackedCallers int  `json:"tracked_callers"`
	LimitPerMinute int  `json:"limit_per_minute"`
	Burst          int  `json:"burst"`
}

// Reset clears all buckets
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.callers = make(map[string]*bucket)
}

// KeyFunc extracts the bucket key of a request
type KeyFunc func(c *gin.Context) string

// ClientIP keys buckets by client address
func ClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// Middleware rejects requests over the limit with 429
func (rl *RateLimiter) Middleware(key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = ClientIP
	}
	return func(c *gin.Context) {
		if rl.AllowRequest(key(c)) {
			c.Next()
			return
		}
		retry := time.Duration(float64(time.Second) / float64(rl.limit))
		c.Header("Retry-After", strconv.Itoa(int(retry.Seconds()+0.999)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"error":   "rate limit exceeded",
		})
	}
}
