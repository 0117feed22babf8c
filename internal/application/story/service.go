package story

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"adventure-story-api/internal/config"
	"adventure-story-api/internal/domain/entity"
	apperrors "adventure-story-api/pkg/errors"
	"adventure-story-api/pkg/logger"
)

const defaultMaxThemeLength = 200

// Service HTTP 层入口：创建任务并调度，查询任务与故事
type Service struct {
	jobs           *JobStore
	reader         *Reader
	dispatcher     Dispatcher
	maxThemeLength int
}

// NewService 创建故事服务
func NewService(jobs *JobStore, reader *Reader, dispatcher Dispatcher, cfg *config.StoryConfig) *Service {
	maxLen := defaultMaxThemeLength
	if cfg != nil && cfg.MaxThemeLength > 0 {
		maxLen = cfg.MaxThemeLength
	}
	return &Service{
		jobs:           jobs,
		reader:         reader,
		dispatcher:     dispatcher,
		maxThemeLength: maxLen,
	}
}

// CreateStory 创建 pending 任务并交给后台执行
// 调度失败时任务直接进入 error 并返回，避免客户端轮询一个永远 pending 的任务
func (s *Service) CreateStory(ctx context.Context, theme, sessionID string) (*entity.StoryJob, error) {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("theme is required")
	}
	if utf8.RuneCountInString(theme) > s.maxThemeLength {
		return nil, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("theme must be at most %d characters", s.maxThemeLength))
	}

	job, err := s.jobs.CreateJob(ctx, theme, sessionID)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithContext(ctx, logger.JobIDKey, job.JobID)

	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		msg := "failed to schedule story generation: " + err.Error()
		logger.Error(ctx, "story job dispatch failed", err)
		if markErr := s.jobs.MarkError(ctx, job.JobID, msg); markErr != nil {
			return nil, markErr
		}
		job.Fail(msg, time.Now().UTC())
		return job, nil
	}

	logger.Info(ctx, "story job created", "theme", theme)
	return job, nil
}

// GetJob 查询任务状态
func (s *Service) GetJob(ctx context.Context, jobID string) (*entity.StoryJob, error) {
	return s.jobs.GetJob(ctx, jobID)
}

// GetCompleteStory 读取完整故事树
func (s *Service) GetCompleteStory(ctx context.Context, storyID int64) (*CompleteStory, error) {
	return s.reader.GetCompleteStory(ctx, storyID)
}
