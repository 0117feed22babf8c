// Package handler 提供 HTTP 请求处理器
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"adventure-story-api/internal/interfaces/http/dto"
	"adventure-story-api/pkg/logger"
)

// JobHandler 任务处理器
type JobHandler struct {
	svc StoryService
}

// NewJobHandler 创建任务处理器
func NewJobHandler(svc StoryService) *JobHandler {
	return &JobHandler{svc: svc}
}

// GetJob 获取任务详情
// @Summary 获取任务详情
// @Description 轮询故事生成任务的状态
// @Tags Jobs
// @Produce json
// @Param job_id path string true "任务 ID"
// @Success 200 {object} dto.JobResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /job/{job_id} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := dto.BindJobID(c)
	ctx := logger.WithContext(c.Request.Context(), logger.JobIDKey, jobID)

	job, err := h.svc.GetJob(ctx, jobID)
	if err != nil {
		writeError(c, "failed to get job", err)
		return
	}

	c.JSON(http.StatusOK, dto.ToJobResponse(job))
}
