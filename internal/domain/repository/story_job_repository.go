package repository

import (
	"context"
	"time"

	"adventure-story-api/internal/domain/entity"
)

// StoryJobRepository 故事任务仓储接口
// Mark* 为条件更新：仅当当前状态允许迁移时生效，返回是否命中
type StoryJobRepository interface {
	// Create 创建任务
	Create(ctx context.Context, job *entity.StoryJob) error

	// GetByID 根据 job_id 获取任务，不存在返回 nil, nil
	GetByID(ctx context.Context, jobID string) (*entity.StoryJob, error)

	// MarkProcessing pending -> processing
	MarkProcessing(ctx context.Context, jobID string, at time.Time) (bool, error)

	// MarkCompleted processing -> completed
	MarkCompleted(ctx context.Context, jobID string, storyID int64, at time.Time) (bool, error)

	// MarkError pending|processing -> error
	MarkError(ctx context.Context, jobID, message string, at time.Time) (bool, error)

	// ListByStatus 按创建时间升序列出指定状态的任务
	ListByStatus(ctx context.Context, status entity.JobStatus, limit int) ([]*entity.StoryJob, error)

	// ListStaleProcessing 列出 started_at 早于指定时间仍在 processing 的任务
	ListStaleProcessing(ctx context.Context, startedBefore time.Time, limit int) ([]*entity.StoryJob, error)
}
