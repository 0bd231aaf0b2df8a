package httpmiddleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"attendance-tracker/internal/metrics"
)

// Limiter is an in-memory per-client token bucket. Buckets refill
// continuously at perMinute tokens per minute up to capacity.
type Limiter struct {
	capacity float64
	exempt   []string
	now      func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewLimiter creates a limiter. Requests whose path starts with one of the
// exempt prefixes are never counted. A non-positive perMinute disables it.
func NewLimiter(perMinute int, exempt ...string) *Limiter {
	return &Limiter{
		capacity: float64(perMinute),
		exempt:   exempt,
		now:      time.Now,
		buckets:  make(map[string]*bucket),
	}
}

// GinMiddleware returns gin handler enforcing per-IP limits.
func (l *Limiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.capacity <= 0 || l.isExempt(c.Request.URL.Path) {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.Allow(ip) {
			metrics.RateLimited()
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// Allow takes one token from key's bucket if available.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true
	}
	b.tokens += now.Sub(b.last).Seconds() * l.capacity / 60
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *Limiter) isExempt(path string) bool {
	for _, p := range l.exempt {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
