// Package middleware 提供 HTTP 中间件
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"z-novel-plan-api/pkg/logger"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerWindow int
	Window            time.Duration
	KeyPrefix         string
}

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 生成类接口限流，按 项目 + 路由模板 计数
func RateLimit(cfg RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if cfg.RequestsPerWindow <= 0 {
		cfg.RequestsPerWindow = 30
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ratelimit:gen"
	}

	return func(c *gin.Context) {
		scope := c.Param("pid")
		if scope == "" {
			scope = c.ClientIP()
		}
		key := cfg.KeyPrefix + ":" + scope + ":" + c.Request.Method + ":" + c.FullPath()

		allowed, err := limiter.Allow(c.Request.Context(), key, cfg.RequestsPerWindow, cfg.Window)
		if err != nil {
			// 限流器故障时放行
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err.Error())
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":     http.StatusTooManyRequests,
				"message":  "rate limit exceeded",
				"trace_id": c.GetString("trace_id"),
			})
			return
		}

		c.Next()
	}
}

// NewRedisRateLimiter 基于 Redis 的限流器；client 为 nil 时返回 nil，调用方据此关闭限流
func NewRedisRateLimiter(client *redis.Client) RateLimiter {
	if client == nil {
		return nil
	}
	return &redisRateLimiter{client: client}
}

// NewRateLimitMiddleware 基于 Redis 的限流中间件
func NewRateLimitMiddleware(cfg RateLimitConfig, client *redis.Client) gin.HandlerFunc {
	return RateLimit(cfg, NewRedisRateLimiter(client))
}

// redisRateLimiter 有序集合实现的滑动窗口
type redisRateLimiter struct {
	client *redis.Client
}

func (r *redisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - window.Nanoseconds()

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	countCmd := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return countCmd.Val() <= int64(limit), nil
}
