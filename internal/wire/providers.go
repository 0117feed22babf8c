// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/wire"

	"adventure-story-api/internal/application/story"
	"adventure-story-api/internal/config"
	"adventure-story-api/internal/domain/repository"
	"adventure-story-api/internal/infrastructure/llm"
	"adventure-story-api/internal/infrastructure/messaging"
	"adventure-story-api/internal/infrastructure/persistence/database"
	"adventure-story-api/internal/infrastructure/persistence/redis"
	"adventure-story-api/internal/interfaces/http/handler"
	"adventure-story-api/internal/interfaces/http/middleware"
	"adventure-story-api/internal/interfaces/http/router"
	"adventure-story-api/internal/workflow/chain"
	workflowport "adventure-story-api/internal/workflow/port"
	"adventure-story-api/pkg/logger"
)

// App api-gateway 依赖容器
type App struct {
	Router     *router.Router
	Pool       *story.WorkerPool
	Dispatcher story.Dispatcher
	Sweeper    *story.Sweeper
}

// Worker job-worker 依赖容器
type Worker struct {
	Generator *story.Generator
	Redis     *redis.Client
}

// Maintenance bootstrap 依赖容器
type Maintenance struct {
	DB     *database.Client
	Jobs   *story.JobStore
	Stream *story.StreamDispatcher
}

// DatabaseSet 数据库与仓储
var DatabaseSet = wire.NewSet(
	ProvideDatabaseClient,
	database.NewTxManager,
	database.NewStoryRepository,
	database.NewStoryNodeRepository,
	database.NewStoryJobRepository,
	wire.Bind(new(repository.Transactor), new(*database.TxManager)),
	wire.Bind(new(repository.StoryRepository), new(*database.StoryRepository)),
	wire.Bind(new(repository.StoryNodeRepository), new(*database.StoryNodeRepository)),
	wire.Bind(new(repository.StoryJobRepository), new(*database.StoryJobRepository)),
	story.NewJobStore,
)

// GenerationSet 模型调用与故事编排
var GenerationSet = wire.NewSet(
	ProvideStoryConfig,
	llm.NewEinoFactory,
	wire.Bind(new(workflowport.ChatModelFactory), new(*llm.EinoFactory)),
	chain.NewStoryChain,
	wire.Bind(new(story.StoryTextGenerator), new(*chain.StoryChain)),
	story.NewMaterializer,
	story.NewGenerator,
)

// DispatchSet 任务调度
var DispatchSet = wire.NewSet(
	ProvideMessagingProducer,
	ProvideStreamDispatcher,
	ProvideWorkerPool,
	ProvideDispatcher,
	story.NewSweeper,
)

// HTTPSet 路由与处理器
var HTTPSet = wire.NewSet(
	ProvideReader,
	story.NewService,
	wire.Bind(new(handler.StoryService), new(*story.Service)),
	handler.NewStoryHandler,
	handler.NewJobHandler,
	ProvideHealthHandler,
	ProvideRateLimiter,
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)

// ProvideStoryConfig 提供故事配置
func ProvideStoryConfig(cfg *config.Config) *config.StoryConfig {
	return &cfg.Story
}

// ProvideDatabaseClient 提供数据库客户端，按配置同步表结构
func ProvideDatabaseClient(ctx context.Context, cfg *config.Config) (*database.Client, func(), error) {
	client, err := database.NewClient(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	if cfg.Database.AutoMigrate {
		if err := client.AutoMigrate(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return client, cleanup, nil
}

// ProvideRedisClientOptional 未启用 Redis 时返回 nil，缓存与限流随之关闭
func ProvideRedisClientOptional(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		logger.Info(ctx, "redis disabled, cache and rate limiting off")
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端，job-worker 必需
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if errors.Is(err, redis.ErrDisabled) {
		return nil, nil, fmt.Errorf("redis must be enabled for the stream worker: %w", err)
	}
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	if redisClient == nil {
		return nil
	}
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

// ProvideStreamDispatcher 没有 Redis 时不提供 stream 调度
func ProvideStreamDispatcher(producer *messaging.Producer) *story.StreamDispatcher {
	if producer == nil {
		return nil
	}
	return story.NewStreamDispatcher(producer)
}

// ProvideWorkerPool 提供进程内 worker 池
func ProvideWorkerPool(gen *story.Generator, cfg *config.StoryConfig) *story.WorkerPool {
	return story.NewWorkerPool(gen, cfg)
}

// ProvideDispatcher 按 story.dispatch_mode 选择调度器
func ProvideDispatcher(cfg *config.StoryConfig, pool *story.WorkerPool, stream *story.StreamDispatcher) (story.Dispatcher, error) {
	return story.SelectDispatcher(cfg.DispatchMode, pool, stream)
}

// ProvideReader 提供故事读取器，Redis 可用时启用读穿透缓存
func ProvideReader(stories repository.StoryRepository, nodes repository.StoryNodeRepository, redisClient *redis.Client, cfg *config.StoryConfig) *story.Reader {
	reader := story.NewReader(stories, nodes)
	if redisClient == nil || cfg.CacheTTL <= 0 {
		return reader
	}
	return reader.WithCache(redis.NewCache(redisClient, "story"), redis.StoryKey, cfg.CacheTTL)
}

// ProvideRateLimiter 没有 Redis 时返回 nil，路由不限流
func ProvideRateLimiter(redisClient *redis.Client) middleware.RateLimiter {
	if redisClient == nil {
		return nil
	}
	return redis.NewRateLimiter(redisClient)
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(cfg *config.Config, db *database.Client, redisClient *redis.Client) *handler.HealthHandler {
	h := handler.NewHealthHandler(cfg.App.Version, db)
	if redisClient != nil {
		h.WithCheck("redis", redisClient)
	}
	return h
}
