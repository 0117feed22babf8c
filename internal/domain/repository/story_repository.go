// Package repository 定义故事与任务的数据访问接口
package repository

import (
	"context"

	"adventure-story-api/internal/domain/entity"
)

// TxKey 当前事务在 context 中的键
type TxKey struct{}

// Transactor 故事与全部节点在同一事务中落库
type Transactor interface {
	// WithTransaction fn 返回错误即回滚；嵌套调用复用外层事务
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// StoryRepository 故事仓储接口
type StoryRepository interface {
	// Create 创建故事，回填自增 ID
	Create(ctx context.Context, story *entity.Story) error

	// GetByID 根据 ID 获取故事，不存在返回 nil, nil
	GetByID(ctx context.Context, id int64) (*entity.Story, error)
}

// StoryNodeRepository 故事节点仓储接口
type StoryNodeRepository interface {
	// Create 创建节点，回填自增 ID
	Create(ctx context.Context, node *entity.StoryNode) error

	// UpdateOptions 回填节点选项
	UpdateOptions(ctx context.Context, nodeID int64, options []entity.StoryOption) error

	// ListByStory 按 ID 升序列出故事的全部节点
	ListByStory(ctx context.Context, storyID int64) ([]*entity.StoryNode, error)
}
