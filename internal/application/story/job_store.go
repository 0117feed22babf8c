package story

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"adventure-story-api/internal/domain/entity"
	"adventure-story-api/internal/domain/repository"
	apperrors "adventure-story-api/pkg/errors"
)

// ErrInvalidTransition 任务当前状态不允许该迁移
var ErrInvalidTransition = apperrors.New(apperrors.CodeConflict, "invalid job status transition")

// JobStore 任务记录与状态机
type JobStore struct {
	jobs repository.StoryJobRepository
	now  func() time.Time
}

// NewJobStore 创建任务存储
func NewJobStore(jobs repository.StoryJobRepository) *JobStore {
	return &JobStore{jobs: jobs, now: time.Now}
}

// CreateJob 写入 pending 任务并立即返回，不等待生成
func (s *JobStore) CreateJob(ctx context.Context, theme, sessionID string) (*entity.StoryJob, error) {
	job := entity.NewStoryJob(uuid.NewString(), sessionID, theme)
	job.CreatedAt = s.now().UTC()
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create story job")
	}
	return job, nil
}

// GetJob 获取任务，不存在返回 CodeJobNotFound
func (s *JobStore) GetJob(ctx context.Context, jobID string) (*entity.StoryJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to get story job")
	}
	if job == nil {
		return nil, apperrors.ErrJobNotFound.WithDetail(jobID)
	}
	return job, nil
}

// MarkProcessing pending -> processing
func (s *JobStore) MarkProcessing(ctx context.Context, jobID string) error {
	ok, err := s.jobs.MarkProcessing(ctx, jobID, s.now())
	return transitionResult(jobID, entity.JobStatusProcessing, ok, err)
}

// MarkCompleted processing -> completed，同时写入 story_id
func (s *JobStore) MarkCompleted(ctx context.Context, jobID string, storyID int64) error {
	ok, err := s.jobs.MarkCompleted(ctx, jobID, storyID, s.now())
	return transitionResult(jobID, entity.JobStatusCompleted, ok, err)
}

// MarkError pending|processing -> error
func (s *JobStore) MarkError(ctx context.Context, jobID, message string) error {
	ok, err := s.jobs.MarkError(ctx, jobID, message, s.now())
	return transitionResult(jobID, entity.JobStatusError, ok, err)
}

// ListPending 按创建时间列出待处理任务
func (s *JobStore) ListPending(ctx context.Context, limit int) ([]*entity.StoryJob, error) {
	return s.jobs.ListByStatus(ctx, entity.JobStatusPending, limit)
}

// ListStaleProcessing 列出开始处理超过 olderThan 的任务
func (s *JobStore) ListStaleProcessing(ctx context.Context, olderThan time.Duration, limit int) ([]*entity.StoryJob, error) {
	return s.jobs.ListStaleProcessing(ctx, s.now().Add(-olderThan), limit)
}

func transitionResult(jobID string, to entity.JobStatus, ok bool, err error) error {
	if err != nil {
		return fmt.Errorf("failed to mark job %s %s: %w", jobID, to, err)
	}
	if !ok {
		return ErrInvalidTransition.WithDetail(fmt.Sprintf("job %s -> %s", jobID, to))
	}
	return nil
}
