package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"adventure-story-api/pkg/logger"
	"adventure-story-api/pkg/metrics"
	"adventure-story-api/pkg/tracer"
)

var otelTracer = otel.Tracer("messaging")

const defaultStreamMaxLen = 100000

// Producer 把故事生成任务写入 Redis Stream，流长度按 MAXLEN ~ 近似裁剪
type Producer struct {
	client *redis.Client
	maxLen int64
}

func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &Producer{client: client, maxLen: maxLen}
}

// PublishStoryJob 消息 id 即 job_id；重复投递由任务状态的条件更新挡住
func (p *Producer) PublishStoryJob(ctx context.Context, jobID, sessionID, theme string) (string, error) {
	msg, err := NewMessage(jobID, MessageTypeStoryGenerate, sessionID, &StoryJobMessage{
		JobID:     jobID,
		SessionID: sessionID,
		Theme:     theme,
	})
	if err != nil {
		return "", err
	}
	return p.Publish(ctx, StreamStoryGen, msg)
}

// Publish 写入前补上请求与链路标识，消费者据此还原日志上下文
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := otelTracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	if msg.GetMetadata("request_id") == "" {
		msg.SetMetadata("request_id", logger.StringFromContext(ctx, logger.RequestIDKey))
	}
	if msg.GetMetadata("trace_id") == "" {
		msg.SetMetadata("trace_id", tracer.TraceID(ctx))
	}

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to encode %s message %s: %w", msg.Type, msg.ID, err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{"data": string(data)},
	}).Result()
	if err != nil {
		span.RecordError(err)
		metrics.RedisStreamPublished.WithLabelValues(string(stream), "error").Inc()
		return "", fmt.Errorf("failed to publish to %s: %w", stream, err)
	}

	metrics.RedisStreamPublished.WithLabelValues(string(stream), "success").Inc()
	span.SetAttributes(attribute.String("stream.message_id", id))
	return id, nil
}
