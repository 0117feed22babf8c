// Package middleware 提供 HTTP 中间件
package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"adventure-story-api/internal/config"
	"adventure-story-api/internal/infrastructure/persistence/redis"
	"adventure-story-api/internal/interfaces/http/dto"
	"adventure-story-api/pkg/logger"
	apperrors "adventure-story-api/pkg/errors"
	"adventure-story-api/pkg/metrics"
)

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SessionRateLimit 按会话限流，需挂在 Session 之后
func SessionRateLimit(cfg config.RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	// 如果未启用限流，返回空中间件
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	if cfg.Requests <= 0 {
		cfg.Requests = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	return func(c *gin.Context) {
		path := c.FullPath()
		sessionID := SessionID(c)
		if sessionID == "" {
			sessionID = "anonymous"
		}

		allowed, err := limiter.Allow(c.Request.Context(), redis.BuildSessionRateLimitKey(sessionID, path), cfg.Requests, cfg.Window)
		if err != nil {
			// 限流器故障时放行
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err.Error())
			c.Next()
			return
		}

		if !allowed {
			metrics.HTTPRateLimited.WithLabelValues(path).Inc()
			dto.AppError(c, apperrors.ErrTooManyRequests)
			c.Abort()
			return
		}

		c.Next()
	}
}
