package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/records/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyPrefix namespaces limiter counters next to the record keys.
const RateLimitKeyPrefix = "records:ratelimit:"

// RedisRateLimitMiddleware counts requests per caller in fixed windows
// shared by every replica talking to the same Redis. A nil client selects the
// in-process limiter.
func RedisRateLimitMiddleware(client *redis.Client, l Limits) gin.HandlerFunc {
	if client == nil {
		return RateLimitMiddleware(l)
	}
	win := l.window()
	allowed := l.perWindow()

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		now := time.Now()
		start := now.Truncate(win)
		key := RateLimitKeyPrefix + limiterKey(c) + ":" + strconv.FormatInt(start.Unix(), 10)

		var count *redis.IntCmd
		_, err := client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			count = p.Incr(ctx, key)
			p.Expire(ctx, key, win+time.Second)
			return nil
		})
		if err != nil {
			logger.Warnf("rate limit: %s: %v", key, err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "rate limiter unavailable"})
			return
		}
		if count.Val() > allowed {
			reject(c, "redis", start.Add(win).Sub(now))
			return
		}
		admit(c, "redis")
	}
}
