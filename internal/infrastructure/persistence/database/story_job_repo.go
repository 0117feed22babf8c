package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"adventure-story-api/internal/domain/entity"
)

// StoryJobRepository 故事任务仓储实现
type StoryJobRepository struct {
	client *Client
}

// NewStoryJobRepository 创建故事任务仓储
func NewStoryJobRepository(client *Client) *StoryJobRepository {
	return &StoryJobRepository{client: client}
}

// Create 创建任务
func (r *StoryJobRepository) Create(ctx context.Context, job *entity.StoryJob) error {
	ctx, span := tracer.Start(ctx, "database.StoryJobRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(job).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create story job: %w", err)
	}
	return nil
}

// GetByID 根据 job_id 获取任务
func (r *StoryJobRepository) GetByID(ctx context.Context, jobID string) (*entity.StoryJob, error) {
	ctx, span := tracer.Start(ctx, "database.StoryJobRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var job entity.StoryJob
	if err := db.First(&job, "job_id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get story job: %w", err)
	}
	return &job, nil
}

// MarkProcessing 标记任务为处理中
func (r *StoryJobRepository) MarkProcessing(ctx context.Context, jobID string, at time.Time) (bool, error) {
	ctx, span := tracer.Start(ctx, "database.StoryJobRepository.MarkProcessing")
	defer span.End()

	return r.transition(ctx, jobID, map[string]interface{}{
		"status":     entity.JobStatusProcessing,
		"started_at": at.UTC(),
	})
}

// MarkCompleted 标记任务完成
func (r *StoryJobRepository) MarkCompleted(ctx context.Context, jobID string, storyID int64, at time.Time) (bool, error) {
	ctx, span := tracer.Start(ctx, "database.StoryJobRepository.MarkCompleted")
	defer span.End()

	return r.transition(ctx, jobID, map[string]interface{}{
		"status":       entity.JobStatusCompleted,
		"story_id":     storyID,
		"error":        nil,
		"completed_at": at.UTC(),
	})
}

// MarkError 标记任务失败
func (r *StoryJobRepository) MarkError(ctx context.Context, jobID, message string, at time.Time) (bool, error) {
	ctx, span := tracer.Start(ctx, "database.StoryJobRepository.MarkError")
	defer span.End()

	return r.transition(ctx, jobID, map[string]interface{}{
		"status":       entity.JobStatusError,
		"story_id":     nil,
		"error":        message,
		"completed_at": at.UTC(),
	})
}

// transition 条件更新：仅当前状态可合法迁移到 updates["status"] 时生效
func (r *StoryJobRepository) transition(ctx context.Context, jobID string, updates map[string]interface{}) (bool, error) {
	from := entity.SourceStatuses(updates["status"].(entity.JobStatus))
	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.StoryJob{}).
		Where("job_id = ? AND status IN ?", jobID, from).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update story job %s to %v: %w", jobID, updates["status"], result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ListByStatus 列出指定状态的任务
func (r *StoryJobRepository) ListByStatus(ctx context.Context, status entity.JobStatus, limit int) ([]*entity.StoryJob, error) {
	ctx, span := tracer.Start(ctx, "database.StoryJobRepository.ListByStatus")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var jobs []*entity.StoryJob
	if err := db.Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list story jobs: %w", err)
	}
	return jobs, nil
}

// ListStaleProcessing 列出超时未结束的任务
func (r *StoryJobRepository) ListStaleProcessing(ctx context.Context, startedBefore time.Time, limit int) ([]*entity.StoryJob, error) {
	ctx, span := tracer.Start(ctx, "database.StoryJobRepository.ListStaleProcessing")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var jobs []*entity.StoryJob
	if err := db.Where("status = ? AND started_at < ?", entity.JobStatusProcessing, startedBefore.UTC()).
		Order("started_at ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list stale story jobs: %w", err)
	}
	return jobs, nil
}
