// Package port 定义工作流层对外部能力的最小依赖
package port

import (
	"context"

	"github.com/cloudwego/eino/components/model"
)

// ChatModelFactory 按提供商名称获取 ChatModel
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)

	// ProviderChain 默认提供商在前，其后为降级顺序
	ProviderChain() []string

	// ModelName 提供商配置的模型名，用于指标与日志
	ModelName(name string) string
}
