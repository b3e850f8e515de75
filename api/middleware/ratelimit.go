package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/quickview/config"
	"github.com/use-agent/quickview/models"
	"golang.org/x/time/rate"
)

// Bucket classes. Hover and leave events get their own bucket so a pointer
// sweeping a product grid cannot starve modal opens, and vice versa.
const (
	bucketDefault = "default"
	bucketHover   = "hover"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit returns per-identity token-bucket rate limiting middleware with
// one bucket per class and identity.
//
// A rejected hover only means the product is not prefetched, so hover
// rejections carry no Retry-After; other rejections ask the client to back
// off for a second.
//
// Entries unused for 1 hour are evicted every 5 minutes.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := make(map[string]*limiterEntry)

	newLimiter := func(class string) *rate.Limiter {
		if class == bucketHover {
			return rate.NewLimiter(rate.Limit(cfg.HoverRequestsPerSecond), cfg.HoverBurst)
		}
		return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}

	getLimiter := func(class, id string) *rate.Limiter {
		key := class + "|" + id
		mu.Lock()
		defer mu.Unlock()
		entry, ok := limiters[key]
		if !ok {
			entry = &limiterEntry{limiter: newLimiter(class)}
			limiters[key] = entry
		}
		entry.lastSeen = time.Now()
		return entry.limiter
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour)
			mu.Lock()
			for key, entry := range limiters {
				if entry.lastSeen.Before(cutoff) {
					delete(limiters, key)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		class := bucketFor(c.FullPath())
		if getLimiter(class, identity(c)).Allow() {
			c.Next()
			return
		}

		msg := "rate limit exceeded, please slow down"
		if class == bucketHover {
			msg = "hover rate limit exceeded, prefetch skipped"
		} else {
			c.Header("Retry-After", "1")
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, models.AckResponse{
			Success: false,
			Error: &models.ErrorDetail{
				Code:    models.ErrCodeRateLimited,
				Message: msg,
			},
		})
	}
}

// bucketFor classifies a matched route.
func bucketFor(route string) string {
	if strings.HasSuffix(route, "/prefetch/hover") || strings.HasSuffix(route, "/prefetch/leave") {
		return bucketHover
	}
	return bucketDefault
}

// identity prefers the API key set by the auth middleware, then the client IP.
func identity(c *gin.Context) string {
	if key, ok := c.Get("api_key"); ok {
		if s, ok := key.(string); ok {
			return s
		}
	}
	return c.ClientIP()
}
