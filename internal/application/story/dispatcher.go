package story

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"adventure-story-api/internal/config"
	"adventure-story-api/internal/domain/entity"
	apperrors "adventure-story-api/pkg/errors"
	"adventure-story-api/pkg/logger"
	"adventure-story-api/pkg/metrics"
)

// Dispatcher 把 pending 任务交给后台执行，不等待生成结果
type Dispatcher interface {
	Dispatch(ctx context.Context, job *entity.StoryJob) error
}

// JobRunner 执行单个任务
type JobRunner interface {
	Run(ctx context.Context, jobID string) error
}

var (
	ErrQueueFull   = apperrors.ErrQueueFull
	ErrPoolStopped = apperrors.New(apperrors.CodeServiceUnavailable, "story worker pool stopped")
)

type queuedJob struct {
	ctx   context.Context
	jobID string
}

// WorkerPool 进程内有界队列 + 固定数量 worker
type WorkerPool struct {
	runner  JobRunner
	queue   chan queuedJob
	workers int

	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewWorkerPool 创建进程内 worker 池，Start 之前投递的任务在队列中等待
func NewWorkerPool(runner JobRunner, cfg *config.StoryConfig) *WorkerPool {
	workers, size := 4, 100
	if cfg != nil {
		if cfg.Workers > 0 {
			workers = cfg.Workers
		}
		if cfg.QueueSize > 0 {
			size = cfg.QueueSize
		}
	}
	return &WorkerPool{
		runner:  runner,
		queue:   make(chan queuedJob, size),
		workers: workers,
	}
}

// Start 启动 worker，重复调用无副作用
func (p *WorkerPool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
		logger.Info(context.Background(), "story worker pool started", "workers", p.workers, "queue_size", cap(p.queue))
	})
}

// Dispatch 非阻塞入队，队列满时返回 ErrQueueFull
func (p *WorkerPool) Dispatch(ctx context.Context, job *entity.StoryJob) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		metrics.StoryJobsDispatched.WithLabelValues(config.DispatchModeLocal, "stopped").Inc()
		return ErrPoolStopped
	}

	select {
	case p.queue <- queuedJob{ctx: context.WithoutCancel(ctx), jobID: job.JobID}:
		metrics.WorkerQueueDepth.Set(float64(len(p.queue)))
		metrics.StoryJobsDispatched.WithLabelValues(config.DispatchModeLocal, "ok").Inc()
		return nil
	default:
		metrics.StoryJobsDispatched.WithLabelValues(config.DispatchModeLocal, "queue_full").Inc()
		return ErrQueueFull
	}
}

// Stop 停止接收新任务，等待队列中的任务执行完毕
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info(ctx, "story worker pool drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("story worker pool drain interrupted: %w", ctx.Err())
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for j := range p.queue {
		metrics.WorkerQueueDepth.Set(float64(len(p.queue)))
		p.runJob(id, j)
	}
}

func (p *WorkerPool) runJob(workerID int, j queuedJob) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(j.ctx, "story worker recovered from panic", fmt.Errorf("%v", r),
				"worker", workerID, "job_id", j.jobID)
		}
	}()
	if err := p.runner.Run(j.ctx, j.jobID); err != nil {
		logger.Error(j.ctx, "story job run failed", err, "worker", workerID, "job_id", j.jobID)
	}
}

// JobPublisher 向消息流投递任务
type JobPublisher interface {
	PublishStoryJob(ctx context.Context, jobID, sessionID, theme string) (string, error)
}

// StreamDispatcher 投递到 Redis Streams，由 job-worker 消费
type StreamDispatcher struct {
	publisher JobPublisher
}

// NewStreamDispatcher 创建投递到 Redis Stream 的调度器
func NewStreamDispatcher(publisher JobPublisher) *StreamDispatcher {
	return &StreamDispatcher{publisher: publisher}
}

// Dispatch 发布任务消息，发布失败返回 CodeQueueError
func (d *StreamDispatcher) Dispatch(ctx context.Context, job *entity.StoryJob) error {
	msgID, err := d.publisher.PublishStoryJob(ctx, job.JobID, job.SessionID, job.Theme)
	if err != nil {
		metrics.StoryJobsDispatched.WithLabelValues(config.DispatchModeStream, "error").Inc()
		return apperrors.Wrap(err, apperrors.CodeQueueError, "failed to publish story job")
	}
	metrics.StoryJobsDispatched.WithLabelValues(config.DispatchModeStream, "ok").Inc()
	logger.Debug(ctx, "story job published", "job_id", job.JobID, "message_id", msgID)
	return nil
}

// SelectDispatcher 按调度模式选择实现
func SelectDispatcher(mode string, pool *WorkerPool, stream *StreamDispatcher) (Dispatcher, error) {
	switch mode {
	case config.DispatchModeLocal, "":
		if pool == nil {
			return nil, errors.New("worker pool not configured")
		}
		return pool, nil
	case config.DispatchModeStream:
		if stream == nil {
			return nil, errors.New("stream dispatcher not configured")
		}
		return stream, nil
	default:
		return nil, fmt.Errorf("unknown dispatch mode: %s", mode)
	}
}
