//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"adventure-story-api/internal/config"
)

// InitializeApp 初始化 api-gateway
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		DatabaseSet,
		ProvideRedisClientOptional,
		GenerationSet,
		DispatchSet,
		HTTPSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// InitializeWorker 初始化 job-worker
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		DatabaseSet,
		ProvideRedisClient,
		GenerationSet,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// InitializeMaintenance 初始化 bootstrap 命令
func InitializeMaintenance(ctx context.Context, cfg *config.Config) (*Maintenance, func(), error) {
	wire.Build(
		DatabaseSet,
		ProvideRedisClientOptional,
		ProvideMessagingProducer,
		ProvideStreamDispatcher,
		wire.Struct(new(Maintenance), "*"),
	)
	return nil, nil, nil
}
