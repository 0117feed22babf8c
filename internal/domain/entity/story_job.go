package entity

import (
	"time"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusError      JobStatus = "error"
)

// IsTerminal 是否为终态
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// CanTransitionTo 检查状态迁移是否合法
// pending -> processing -> completed|error，pending 也可直接进入 error（调度失败/清理）
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next == JobStatusError
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusError
	default:
		return false
	}
}

// SourceStatuses 返回可以迁移到 next 的全部状态
func SourceStatuses(next JobStatus) []JobStatus {
	var from []JobStatus
	for _, s := range []JobStatus{JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusError} {
		if s.CanTransitionTo(next) {
			from = append(from, s)
		}
	}
	return from
}

// StoryJob 故事生成任务
type StoryJob struct {
	JobID       string     `json:"job_id" gorm:"type:varchar(36);primaryKey"`
	SessionID   string     `json:"session_id" gorm:"type:varchar(64);index"`
	Theme       string     `json:"theme" gorm:"type:text;not null"`
	Status      JobStatus  `json:"status" gorm:"type:varchar(20);index;not null;default:'pending'"`
	StoryID     *int64     `json:"story_id"`
	Error       *string    `json:"error" gorm:"type:text"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	StartedAt   *time.Time `json:"-"`
	CompletedAt *time.Time `json:"completed_at"`
}

// TableName 指定表名
func (StoryJob) TableName() string {
	return "story_jobs"
}

// NewStoryJob 创建待处理任务
func NewStoryJob(jobID, sessionID, theme string) *StoryJob {
	return &StoryJob{
		JobID:     jobID,
		SessionID: sessionID,
		Theme:     theme,
		Status:    JobStatusPending,
		CreatedAt: time.Now(),
	}
}

// Start 进入 processing
func (j *StoryJob) Start(at time.Time) {
	j.Status = JobStatusProcessing
	j.StartedAt = &at
}

// Complete 完成任务
func (j *StoryJob) Complete(storyID int64, at time.Time) {
	j.Status = JobStatusCompleted
	j.StoryID = &storyID
	j.Error = nil
	j.CompletedAt = &at
}

// Fail 任务失败
func (j *StoryJob) Fail(message string, at time.Time) {
	j.Status = JobStatusError
	j.StoryID = nil
	j.Error = &message
	j.CompletedAt = &at
}

// IsTerminal 任务是否已结束
func (j *StoryJob) IsTerminal() bool {
	return j.Status.IsTerminal()
}
