package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/dumeirei/villa-booking-backend/internal/common/cache"
	"github.com/dumeirei/villa-booking-backend/internal/common/response"
)

// fixedWindow Redis 计数的固定窗口限流
type fixedWindow struct {
	rdb    redis.UniversalClient
	limit  int
	window time.Duration
	key    func(*gin.Context) string
}

// IPRateLimit 按客户端 IP 限流
func IPRateLimit(rdb redis.UniversalClient, limit int, window time.Duration) gin.HandlerFunc {
	return (&fixedWindow{rdb: rdb, limit: limit, window: window, key: func(c *gin.Context) string {
		return cache.BuildKey(cache.KeyPrefixRateLimit, "ip", c.ClientIP())
	}}).handle
}

// UserRateLimit 按登录用户限流，未登录时按 IP
// scope 区分接口配额，例如预订提交
func UserRateLimit(rdb redis.UniversalClient, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return (&fixedWindow{rdb: rdb, limit: limit, window: window, key: func(c *gin.Context) string {
		if userID := GetUserID(c); userID > 0 {
			return cache.BuildKey(cache.KeyPrefixRateLimit, scope, "user", strconv.FormatInt(userID, 10))
		}
		return cache.BuildKey(cache.KeyPrefixRateLimit, scope, "ip", c.ClientIP())
	}}).handle
}

// handle Redis 出错时放行
func (w *fixedWindow) handle(c *gin.Context) {
	ctx := c.Request.Context()
	key := w.key(c)

	pipe := w.rdb.Pipeline()
	incr := pipe.Incr(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		c.Next()
		return
	}
	count, ttl := incr.Val(), ttlCmd.Val()
	// 新窗口或上次设置过期失败的键
	if ttl < 0 {
		w.rdb.Expire(ctx, key, w.window)
		ttl = w.window
	}

	remaining := w.limit - int(count)
	c.Header("X-RateLimit-Limit", strconv.Itoa(w.limit))
	if remaining < 0 {
		c.Header("X-RateLimit-Remaining", "0")
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
		c.Header("Retry-After", strconv.Itoa(int(ttl.Round(time.Second)/time.Second)))
		response.TooManyRequests(c, "请求过于频繁，请稍后再试")
		c.Abort()
		return
	}
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Next()
}
