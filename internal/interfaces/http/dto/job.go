// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"adventure-story-api/internal/domain/entity"
)

// JobResponse 任务响应
type JobResponse struct {
	JobID       string     `json:"job_id"`
	SessionID   string     `json:"session_id"`
	Theme       string     `json:"theme"`
	Status      string     `json:"status"`
	StoryID     *int64     `json:"story_id"`
	Error       *string    `json:"error"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// ToJobResponse 将领域实体转换为响应 DTO
func ToJobResponse(j *entity.StoryJob) *JobResponse {
	if j == nil {
		return nil
	}
	return &JobResponse{
		JobID:       j.JobID,
		SessionID:   j.SessionID,
		Theme:       j.Theme,
		Status:      string(j.Status),
		StoryID:     j.StoryID,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
	}
}
