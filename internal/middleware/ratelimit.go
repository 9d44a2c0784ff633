package middleware

import (
	"math"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/showcase/backend/internal/errors"
	"github.com/zfogg/showcase/backend/internal/logger"
	"github.com/zfogg/showcase/backend/internal/util"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// idleTTL is how long an idle client keeps its limiter
const idleTTL = 3 * time.Minute

// IPRateLimiter keeps one token bucket per client IP
type IPRateLimiter struct {
	mu    sync.Mutex
	ips   map[string]*limiterEntry
	r     rate.Limit
	burst int

	stop     chan struct{}
	stopOnce sync.Once
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter creates a limiter allowing r requests per second with the
// given burst. Call Stop to end the idle-entry cleanup loop.
func NewIPRateLimiter(r rate.Limit, burst int) *IPRateLimiter {
	rl := &IPRateLimiter{
		ips:   make(map[string]*limiterEntry),
		r:     r,
		burst: burst,
		stop:  make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *IPRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evictIdle(time.Now())
		}
	}
}

func (rl *IPRateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, entry := range rl.ips {
		if now.Sub(entry.lastSeen) > idleTTL {
			delete(rl.ips, ip)
		}
	}
}

// Stop ends the cleanup loop
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// GetLimiter returns the limiter for ip, creating it on first use
func (rl *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.ips[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.r, rl.burst)}
		rl.ips[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// retryAfter is the time until one token refills
func (rl *IPRateLimiter) retryAfter() time.Duration {
	if rl.r <= 0 {
		return time.Minute
	}
	return time.Duration(math.Ceil(float64(time.Second) / float64(rl.r)))
}

// RateLimit rejects requests over the per-IP budget with 429 and Retry-After
func RateLimit(rl *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if rl.GetLimiter(ip).Allow() {
			c.Next()
			return
		}

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		RecordRateLimitExceeded(endpoint, c.Request.Method)
		logger.Log.Debug("Rate limit exceeded",
			logger.WithIP(ip),
			zap.String("path", c.Request.URL.Path))

		util.RespondWithAPIError(c, errors.RateLimited("Too many requests, please slow down", rl.retryAfter()))
	}
}
