package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"adventure-story-api/pkg/logger"
	"adventure-story-api/pkg/metrics"
)

var cacheTracer = otel.Tracer("redis.cache")

// Cache 完整故事聚合的读穿透缓存，同一个键的并发未命中只回源一次
type Cache struct {
	client *Client
	name   string
	group  singleflight.Group
}

// NewCache name 作为指标标签
func NewCache(client *Client, name string) *Cache {
	return &Cache{client: client, name: name}
}

// StoryKey 故事写入后不再变化，键里不带版本
func StoryKey(storyID int64) string {
	return fmt.Sprintf("story:complete:%d", storyID)
}

// Get 未命中返回 redis.Nil
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := cacheTracer.Start(ctx, "cache.Get",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.lookup(ctx, key)
	if err != nil && !IsNil(err) {
		span.RecordError(err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", err == nil))
	return val, err
}

// GetOrLoadSafe 命中直接返回；未命中时调用 loader 并把其 JSON 结果写回
// loader 出错不写缓存，写缓存失败只记日志
func (c *Cache) GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error) {
	ctx, span := cacheTracer.Start(ctx, "cache.GetOrLoadSafe",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.lookup(ctx, key)
	switch {
	case err == nil:
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return val, nil
	case !IsNil(err):
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	// 共享的回源不能被某一个调用方的取消打断
	loadCtx := context.WithoutCancel(ctx)
	result, err, shared := c.group.Do(key, func() (interface{}, error) {
		if val, err := c.client.rdb.Get(loadCtx, key).Bytes(); err == nil {
			return val, nil
		}
		data, err := loader()
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s cache entry: %w", c.name, err)
		}
		if err := c.client.rdb.Set(loadCtx, key, encoded, ttl).Err(); err != nil {
			logger.Warn(loadCtx, "failed to populate cache", "cache", c.name, "key", key, "error", err)
		}
		return encoded, nil
	})
	span.SetAttributes(attribute.Bool("cache.shared", shared))
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// lookup 读取并按 hit/miss/error 计数
func (c *Cache) lookup(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		metrics.CacheRequests.WithLabelValues(c.name, "hit").Inc()
	case IsNil(err):
		metrics.CacheRequests.WithLabelValues(c.name, "miss").Inc()
	default:
		metrics.CacheRequests.WithLabelValues(c.name, "error").Inc()
	}
	return val, err
}
