package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"invoiceflow/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// rateEntry tracks request counts per IP within a fixed window.
type rateEntry struct {
	count     int
	windowEnd time.Time
	mu        sync.Mutex
}

type limiter struct {
	limit   int
	window  time.Duration
	mu      sync.Mutex
	entries map[string]*rateEntry
	now     func() time.Time
}

func newLimiter(limit int, window time.Duration) *limiter {
	return &limiter{limit: limit, window: window, entries: make(map[string]*rateEntry), now: time.Now}
}

// allow counts one request and reports whether it fits the window, plus the
// remaining budget and the window end.
func (l *limiter) allow(ip string) (bool, int, time.Time) {
	l.mu.Lock()
	entry, ok := l.entries[ip]
	if !ok {
		entry = &rateEntry{}
		l.entries[ip] = entry
	}
	l.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := l.now()
	if now.After(entry.windowEnd) {
		entry.count = 0
		entry.windowEnd = now.Add(l.window)
	}
	entry.count++
	return entry.count <= l.limit, max(l.limit-entry.count, 0), entry.windowEnd
}

func (l *limiter) purge() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	purged := 0
	for ip, entry := range l.entries {
		entry.mu.Lock()
		if now.After(entry.windowEnd) {
			delete(l.entries, ip)
			purged++
		}
		entry.mu.Unlock()
	}
	return purged
}

const purgeInterval = 5 * time.Minute

// RateLimiter limits each client IP to limit requests per window and
// advertises the budget with RateLimit-* headers. Expired entries are purged
// in the background until ctx is cancelled.
func RateLimiter(ctx context.Context, limit int, window time.Duration) gin.HandlerFunc {
	l := newLimiter(limit, window)
	go l.purgeLoop(ctx, purgeInterval)

	return func(c *gin.Context) {
		ok, remaining, reset := l.allow(c.ClientIP())
		c.Header("RateLimit-Limit", strconv.Itoa(limit))
		c.Header("RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("RateLimit-Reset", strconv.Itoa(int(time.Until(reset).Seconds())))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(time.Until(reset).Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				apierror.New("RATE_LIMITED", "Too many requests, please try again later."))
			return
		}
		c.Next()
	}
}

// purgeLoop drops IPs whose window has passed so the map does not grow
// without bound.
func (l *limiter) purgeLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if purged := l.purge(); purged > 0 {
				log.Debug().Int("purged", purged).Msg("rate limiter: expired entries removed")
			}
		}
	}
}
