package callback

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"adventure-story-api/internal/domain/service"
	"adventure-story-api/pkg/logger"
	"adventure-story-api/pkg/metrics"
)

type startTimeKey struct{}

func newChatModelCallbackHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: onModelStart,
		OnEnd:   onModelEnd,
		OnError: onModelError,
	}
}

func onModelStart(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
	ctx = context.WithValue(ctx, startTimeKey{}, time.Now())
	if name := modelNameFromInput(input); name != "" {
		ctx = service.WithModel(ctx, name)
	}

	labels := service.LabelsFromContext(ctx)
	attrs := []attribute.KeyValue{
		attribute.String("eino.workflow", labels.Workflow),
		attribute.String("llm.provider", labels.Provider),
		attribute.String("llm.model", labels.Model),
	}
	if info != nil {
		attrs = append(attrs,
			attribute.String("eino.node_name", info.Name),
			attribute.String("eino.type", info.Type),
		)
	}

	ctx, _ = otel.Tracer("eino").Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
	return ctx
}

func onModelEnd(ctx context.Context, _ *einocb.RunInfo, output *model.CallbackOutput) context.Context {
	labels := service.LabelsFromContext(ctx)
	elapsed := elapsedSeconds(ctx)

	metrics.LLMCallTotal.WithLabelValues(labels.Workflow, labels.Provider, labels.Model, "success").Inc()
	if elapsed > 0 {
		metrics.LLMCallDuration.WithLabelValues(labels.Workflow, labels.Provider, labels.Model).Observe(elapsed)
	}

	var promptTokens, completionTokens int
	if output != nil && output.TokenUsage != nil {
		promptTokens = output.TokenUsage.PromptTokens
		completionTokens = output.TokenUsage.CompletionTokens
		metrics.LLMTokensUsed.WithLabelValues(labels.Workflow, labels.Provider, labels.Model, "prompt").Add(float64(promptTokens))
		metrics.LLMTokensUsed.WithLabelValues(labels.Workflow, labels.Provider, labels.Model, "completion").Add(float64(completionTokens))
	}

	logger.Info(ctx, "llm call completed",
		"workflow", labels.Workflow,
		"provider", labels.Provider,
		"model", labels.Model,
		"prompt_tokens", promptTokens,
		"completion_tokens", completionTokens,
		"duration_ms", int64(elapsed*1000),
	)

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Int("llm.prompt_tokens", promptTokens),
		attribute.Int("llm.completion_tokens", completionTokens),
	)
	span.End()
	return ctx
}

func onModelError(ctx context.Context, _ *einocb.RunInfo, err error) context.Context {
	labels := service.LabelsFromContext(ctx)

	metrics.LLMCallTotal.WithLabelValues(labels.Workflow, labels.Provider, labels.Model, "error").Inc()
	if d := elapsedSeconds(ctx); d > 0 {
		metrics.LLMCallDuration.WithLabelValues(labels.Workflow, labels.Provider, labels.Model).Observe(d)
	}

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
	return ctx
}

func elapsedSeconds(ctx context.Context) float64 {
	start, ok := ctx.Value(startTimeKey{}).(time.Time)
	if !ok || start.IsZero() {
		return 0
	}
	return time.Since(start).Seconds()
}

func modelNameFromInput(in *model.CallbackInput) string {
	if in == nil || in.Config == nil {
		return ""
	}
	return in.Config.Model
}
