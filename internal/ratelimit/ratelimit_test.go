package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAllowRequest_BurstThenDeny(t *testing.T) {
	rl := NewRateLimiter(60, 3, true)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.AllowRequest("org-1"), "request %d", i)
	}
	assert.False(t, rl.AllowRequest("org-1"))

	// other callers have their own bucket
	assert.True(t, rl.AllowRequest("org-2"))

	// one token refills per second at 60/min
	now = now.Add(time.Second)
	assert.True(t, rl.AllowRequest("org-1"))
	assert.False(t, rl.AllowRequest("org-1"))
}

func TestAllowRequest_Disabled(t *testing.T) {
	rl := NewRateLimiter(1, 1, false)
	for i := 0; i < 10; i++ {
		assert.True(t, rl.AllowRequest("k"))
	}
	assert.Equal(t, Stats{Enabled: false}, rl.GetStats())
}

func TestSweepAndStats(t *testing.T) {
	rl := NewRateLimiter(120, 5, true)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.AllowRequest("a")
	now = now.Add(idleTTL / 2)
	rl.AllowRequest("b")

	stats := rl.GetStats()
	assert.Equal(t, 2, stats.TrackedCallers)
	assert.Equal(t, 120, stats.LimitPerMinute)
	assert.Equal(t, 5, stats.Burst)

	now = now.Add(idleTTL/2 + time.Second)
	assert.Equal(t, 1, rl.Sweep())
	assert.Equal(t, 1, rl.GetStats().TrackedCallers)

	rl.Reset()
	assert.Equal(t, 0, rl.GetStats().TrackedCallers)
}

func TestMiddleware(t *testing.T) {
	rl := NewRateLimiter(60, 1, true)
	r := gin.New()
	r.GET("/x", rl.Middleware(func(c *gin.Context) string { return c.GetHeader("X-Org") }), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func(org string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-Org", org)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do("a").Code)
	w := do("a")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, do("b").Code)
}
