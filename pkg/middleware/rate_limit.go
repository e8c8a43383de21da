package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/records/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limits bounds how many requests one caller may issue. RPS and Burst drive
// the in-process token bucket; the Redis limiter admits
// RPS*Window+Burst requests per fixed Window.
type Limits struct {
	RPS    float64
	Burst  int
	Window time.Duration
}

func (l Limits) window() time.Duration {
	if l.Window < time.Second {
		return time.Second
	}
	return l.Window.Truncate(time.Second)
}

func (l Limits) perWindow() int64 {
	return int64(l.RPS*l.window().Seconds()) + int64(l.Burst)
}

// RateLimit picks the Redis limiter when client is set so that every
// replica shares one budget per caller, and the in-process limiter otherwise.
func RateLimit(l Limits, client *redis.Client) gin.HandlerFunc {
	if client != nil {
		return RedisRateLimitMiddleware(client, l)
	}
	return RateLimitMiddleware(l)
}

// limiterKey prefers the authenticated owner and falls back to the client IP.
func limiterKey(c *gin.Context) string {
	if owner, ok := Owner(c); ok {
		return "sub:" + owner
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

func admit(c *gin.Context, backend string) {
	metrics.RateLimitAllowed.WithLabelValues(backend).Inc()
	c.Next()
}

func reject(c *gin.Context, backend string, retryAfter time.Duration) {
	secs := int64(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", strconv.FormatInt(secs, 10))
	metrics.RateLimitRejected.WithLabelValues(backend).Inc()
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
}

// RateLimitMiddleware keeps one token bucket per caller in this process.
func RateLimitMiddleware(l Limits) gin.HandlerFunc {
	var buckets sync.Map // caller key -> *rate.Limiter

	return func(c *gin.Context) {
		v, _ := buckets.LoadOrStore(limiterKey(c), rate.NewLimiter(rate.Limit(l.RPS), l.Burst))
		if !v.(*rate.Limiter).Allow() {
			reject(c, "memory", time.Second)
			return
		}
		admit(c, "memory")
	}
}
