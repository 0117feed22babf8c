// Package redis 提供故事缓存、会话限流所用的 Redis 客户端
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"adventure-story-api/internal/config"
)

var tracer = otel.Tracer("redis")

// ErrDisabled cache.redis.enabled 为 false
var ErrDisabled = errors.New("redis is disabled (cache.redis.enabled=false)")

const defaultPingTimeout = 5 * time.Second

// Client 包装 go-redis，供缓存、限流与 Streams 共用
type Client struct {
	rdb *redis.Client
}

// NewClient 按配置建立连接并 PING 一次，未启用时返回 ErrDisabled
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, ErrDisabled
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr(), err)
	}
	return &Client{rdb: rdb}, nil
}

// NewClientFromRedis 包装已有连接，测试与 Streams 消费者使用
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

func (c *Client) Redis() *redis.Client {
	return c.rdb
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// HealthCheck 供 /ready 调用，连接池状态记录在 span 上
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "redis.HealthCheck")
	defer span.End()

	stats := c.rdb.PoolStats()
	span.SetAttributes(
		attribute.Int64("redis.pool.total_conns", int64(stats.TotalConns)),
		attribute.Int64("redis.pool.idle_conns", int64(stats.IdleConns)),
		attribute.Int64("redis.pool.timeouts", int64(stats.Timeouts)),
	)

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// IsNil 缓存未命中
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
