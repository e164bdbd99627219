package mw

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// ClientLimiters hands out one token bucket per client key. Buckets that sit
// idle past the expiry are evicted so the registry does not grow without
// bound.
type ClientLimiters struct {
	buckets *cache.Cache
	r       rate.Limit
	b       int
	idle    time.Duration
}

// NewClientLimiters creates a registry of r events/sec with burst b.
func NewClientLimiters(r rate.Limit, b int, idle time.Duration) *ClientLimiters {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &ClientLimiters{
		buckets: cache.New(idle, idle),
		r:       r,
		b:       b,
		idle:    idle,
	}
}

// Get returns the limiter for key, creating it on first use. Every call
// pushes the eviction deadline forward.
func (l *ClientLimiters) Get(key string) *rate.Limiter {
	if v, ok := l.buckets.Get(key); ok {
		limiter := v.(*rate.Limiter)
		l.buckets.Set(key, limiter, l.idle)
		return limiter
	}
	limiter := rate.NewLimiter(l.r, l.b)
	// Add fails if a concurrent request created the bucket first.
	if err := l.buckets.Add(key, limiter, l.idle); err != nil {
		if v, ok := l.buckets.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}

// RateLimiter is a middleware for IP-based rate limiting.
func RateLimiter(limiters *ClientLimiters) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiters.Get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
