package story

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"adventure-story-api/internal/config"
	"adventure-story-api/internal/domain/entity"
	"adventure-story-api/internal/domain/repository"
	wfmodel "adventure-story-api/internal/workflow/model"
	wfnode "adventure-story-api/internal/workflow/node"
	apperrors "adventure-story-api/pkg/errors"
	"adventure-story-api/pkg/logger"
	"adventure-story-api/pkg/metrics"
)

const (
	defaultGenerationTimeout = 5 * time.Minute
	maxErrorMessageRunes     = 2000
)

// StoryTextGenerator 调用语言模型生成故事 JSON 文本
type StoryTextGenerator interface {
	Generate(ctx context.Context, in *wfmodel.StoryGenerateInput) (*wfmodel.StoryGenerateOutput, error)
}

// Generator 驱动单个任务：processing -> 模型调用 -> 校验 -> 落库 -> completed|error
type Generator struct {
	jobs         *JobStore
	llm          StoryTextGenerator
	tx           repository.Transactor
	stories      repository.StoryRepository
	materializer *Materializer
	timeout      time.Duration
}

// NewGenerator 创建生成编排器
func NewGenerator(
	jobs *JobStore,
	llm StoryTextGenerator,
	tx repository.Transactor,
	stories repository.StoryRepository,
	materializer *Materializer,
	cfg *config.StoryConfig,
) *Generator {
	timeout := defaultGenerationTimeout
	if cfg != nil && cfg.GenerationTimeout > 0 {
		timeout = cfg.GenerationTimeout
	}
	return &Generator{
		jobs:         jobs,
		llm:          llm,
		tx:           tx,
		stories:      stories,
		materializer: materializer,
		timeout:      timeout,
	}
}

type llmCallError struct {
	err error
}

func (e *llmCallError) Error() string { return "language model call failed: " + e.err.Error() }
func (e *llmCallError) Unwrap() error { return e.err }

var errGenerationTimeout = errors.New("story generation timed out")

// Run 执行任务，生成期间的失败全部落到任务的 error 字段
// 返回 error 仅表示任务状态本身无法读写，调用方可据此重试
func (g *Generator) Run(ctx context.Context, jobID string) error {
	// 与发起请求/消息的生命周期解绑
	ctx = context.WithoutCancel(ctx)
	ctx = logger.WithContext(ctx, logger.JobIDKey, jobID)

	ctx, span := tracer.Start(ctx, "story.generate")
	defer span.End()
	span.SetAttributes(attribute.String("story.job_id", jobID))

	job, err := g.jobs.GetJob(ctx, jobID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeJobNotFound) {
			logger.Warn(ctx, "story job not found, skipping")
			metrics.StoryGenerationTotal.WithLabelValues("skipped").Inc()
			return nil
		}
		span.RecordError(err)
		return err
	}
	ctx = logger.WithContext(ctx, logger.SessionIDKey, job.SessionID)

	if job.Status != entity.JobStatusPending {
		logger.Info(ctx, "story job already picked up, skipping", "status", string(job.Status))
		metrics.StoryGenerationTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	if err := g.jobs.MarkProcessing(ctx, jobID); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			logger.Info(ctx, "story job claimed concurrently, skipping")
			metrics.StoryGenerationTotal.WithLabelValues("skipped").Inc()
			return nil
		}
		span.RecordError(err)
		return err
	}
	logger.Info(ctx, "story generation started", "theme", job.Theme)

	start := time.Now()
	storyID, genErr := g.generate(ctx, job)
	elapsed := time.Since(start)

	if genErr != nil {
		msg := g.failureMessage(genErr)
		span.RecordError(genErr)
		span.SetStatus(codes.Error, msg)
		logger.Error(ctx, "story generation failed", genErr, "duration_ms", elapsed.Milliseconds())
		metrics.StoryGenerationTotal.WithLabelValues(string(entity.JobStatusError)).Inc()
		metrics.StoryGenerationDuration.WithLabelValues(string(entity.JobStatusError)).Observe(elapsed.Seconds())

		if err := g.jobs.MarkError(ctx, jobID, msg); err != nil {
			logger.Error(ctx, "failed to mark story job error", err)
			return err
		}
		return nil
	}

	if err := g.jobs.MarkCompleted(ctx, jobID, storyID); err != nil {
		// 故事已提交但任务未能标记完成，留给 sweeper 处理
		logger.Error(ctx, "failed to mark story job completed", err, "story_id", storyID)
		span.RecordError(err)
		return err
	}

	span.SetAttributes(attribute.Int64("story.id", storyID))
	logger.Info(ctx, "story generation completed", "story_id", storyID, "duration_ms", elapsed.Milliseconds())
	metrics.StoryGenerationTotal.WithLabelValues(string(entity.JobStatusCompleted)).Inc()
	metrics.StoryGenerationDuration.WithLabelValues(string(entity.JobStatusCompleted)).Observe(elapsed.Seconds())
	return nil
}

func (g *Generator) generate(ctx context.Context, job *entity.StoryJob) (storyID int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			storyID = 0
			err = fmt.Errorf("panic during story generation: %v", r)
		}
	}()

	out, err := g.llm.Generate(ctx, &wfmodel.StoryGenerateInput{Theme: job.Theme})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, errGenerationTimeout
		}
		return 0, &llmCallError{err: err}
	}
	logger.Debug(ctx, "story response received",
		"provider", out.Meta.Provider,
		"model", out.Meta.Model,
		"completion_tokens", out.Meta.CompletionTokens,
	)

	payload, err := ParseStoryResponse(out.Raw)
	if err != nil {
		return 0, err
	}

	err = g.tx.WithTransaction(ctx, func(ctx context.Context) error {
		story := entity.NewStory(payload.Title, job.SessionID)
		if err := g.stories.Create(ctx, story); err != nil {
			return fmt.Errorf("failed to create story: %w", err)
		}
		if _, err := g.materializer.Materialize(ctx, story.ID, payload.RootNode); err != nil {
			return err
		}
		storyID = story.ID
		return nil
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, errGenerationTimeout
		}
		return 0, fmt.Errorf("failed to persist story: %w", err)
	}
	return storyID, nil
}

// failureMessage 生成写入任务 error 字段的可读信息
func (g *Generator) failureMessage(err error) string {
	var msg string
	switch {
	case errors.Is(err, errGenerationTimeout):
		msg = fmt.Sprintf("story generation timed out after %s", g.timeout)
	default:
		msg = err.Error()
	}
	return wfnode.TruncateMessage(msg, maxErrorMessageRunes, "...")
}
