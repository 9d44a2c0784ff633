package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/zfogg/showcase/backend/internal/metrics"
	"golang.org/x/time/rate"
)

func newLimitedRouter(rl *IPRateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(RateLimit(rl))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func requestFrom(router *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = ip + ":1234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter(t *testing.T) {
	rl := NewIPRateLimiter(rate.Limit(2), 3)
	defer rl.Stop()
	router := newLimitedRouter(rl)

	before := testutil.ToFloat64(metrics.Get().RateLimitExceededTotal.WithLabelValues("/test", "GET"))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, requestFrom(router, "10.0.0.1").Code, "request %d should succeed", i+1)
	}

	w := requestFrom(router, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "4th request should be rate limited")
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.Get().RateLimitExceededTotal.WithLabelValues("/test", "GET")))

	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, http.StatusOK, requestFrom(router, "10.0.0.1").Code, "token should refill")
}

func TestRateLimiterDifferentClients(t *testing.T) {
	rl := NewIPRateLimiter(rate.Limit(1), 2)
	defer rl.Stop()
	router := newLimitedRouter(rl)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, requestFrom(router, "10.0.0.1").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, requestFrom(router, "10.0.0.1").Code, "client A should be limited")
	assert.Equal(t, http.StatusOK, requestFrom(router, "10.0.0.2").Code, "client B should not be limited")
}

func TestIPRateLimiterEvictsIdle(t *testing.T) {
	rl := NewIPRateLimiter(rate.Limit(1), 1)
	defer rl.Stop()

	first := rl.GetLimiter("10.0.0.1")
	assert.Same(t, first, rl.GetLimiter("10.0.0.1"))

	rl.evictIdle(time.Now().Add(idleTTL + time.Second))
	assert.NotSame(t, first, rl.GetLimiter("10.0.0.1"))

	rl.Stop()
	rl.Stop()
}
