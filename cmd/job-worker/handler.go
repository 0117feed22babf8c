package main

import (
	"context"
	"fmt"

	"adventure-story-api/internal/application/story"
	"adventure-story-api/internal/infrastructure/messaging"
	"adventure-story-api/pkg/logger"
)

// storyJobHandler 将 story_generate 消息交给生成器
// 生成器自身负责终态写入，这里只有消息本身无法解析时才返回错误触发重试/死信
func storyJobHandler(runner story.JobRunner) messaging.MessageHandler {
	return func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.StoryJobMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return fmt.Errorf("failed to decode story job message: %w", err)
		}
		if payload.JobID == "" {
			return fmt.Errorf("story job message %s has no job_id", msg.ID)
		}

		ctx = logger.WithContext(ctx, logger.SessionIDKey, payload.SessionID)
		if rid := msg.GetMetadata("request_id"); rid != "" {
			ctx = logger.WithContext(ctx, logger.RequestIDKey, rid)
		}
		return runner.Run(ctx, payload.JobID)
	}
}
