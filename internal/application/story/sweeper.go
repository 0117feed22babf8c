package story

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adventure-story-api/internal/config"
	"adventure-story-api/pkg/logger"
	"adventure-story-api/pkg/metrics"
)

const defaultSweepBatch = 100

// Sweeper 处理重启丢失的 pending 任务与卡死在 processing 的任务
type Sweeper struct {
	jobs       *JobStore
	dispatcher Dispatcher
	staleAfter time.Duration
	batch      int
}

// NewSweeper 创建任务清理器，dispatcher 为 nil 时只做过期处理
func NewSweeper(jobs *JobStore, dispatcher Dispatcher, cfg *config.StoryConfig) *Sweeper {
	s := &Sweeper{
		jobs:       jobs,
		dispatcher: dispatcher,
		staleAfter: defaultGenerationTimeout + time.Minute,
		batch:      defaultSweepBatch,
	}
	if cfg != nil {
		if d := cfg.StaleAfter(); d > 0 {
			s.staleAfter = d
		}
		if cfg.SweepBatch > 0 {
			s.batch = cfg.SweepBatch
		}
	}
	return s
}

// RequeuePending 重新调度 pending 任务（进程内队列在重启后丢失）
func (s *Sweeper) RequeuePending(ctx context.Context) (int, error) {
	if s.dispatcher == nil {
		return 0, errors.New("requeue needs a dispatcher")
	}
	jobs, err := s.jobs.ListPending(ctx, s.batch)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending jobs: %w", err)
	}

	requeued := 0
	for _, job := range jobs {
		if err := s.dispatcher.Dispatch(ctx, job); err != nil {
			if errors.Is(err, ErrQueueFull) {
				logger.Warn(ctx, "worker queue full, remaining pending jobs left for next sweep", "remaining", len(jobs)-requeued)
				break
			}
			logger.Error(ctx, "failed to requeue pending job", err, "job_id", job.JobID)
			continue
		}
		requeued++
		metrics.StoryJobsSwept.WithLabelValues("requeued").Inc()
	}
	if requeued > 0 {
		logger.Info(ctx, "pending story jobs requeued", "count", requeued)
	}
	return requeued, nil
}

// ExpireStale 将 started_at 早于 generation_timeout + stale_grace 的任务标记为 error
func (s *Sweeper) ExpireStale(ctx context.Context) (int, error) {
	jobs, err := s.jobs.ListStaleProcessing(ctx, s.staleAfter, s.batch)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale jobs: %w", err)
	}

	expired := 0
	msg := fmt.Sprintf("story generation abandoned after %s", s.staleAfter)
	for _, job := range jobs {
		if err := s.jobs.MarkError(ctx, job.JobID, msg); err != nil {
			// 期间已完成的任务会命中条件更新失败，忽略
			if errors.Is(err, ErrInvalidTransition) {
				continue
			}
			return expired, err
		}
		expired++
		metrics.StoryJobsSwept.WithLabelValues("expired").Inc()
		logger.Warn(ctx, "stale story job expired", "job_id", job.JobID)
	}
	return expired, nil
}

// Run cron 入口
func (s *Sweeper) Run() {
	ctx := context.Background()
	if _, err := s.ExpireStale(ctx); err != nil {
		logger.Error(ctx, "story sweeper failed", err)
	}
}
