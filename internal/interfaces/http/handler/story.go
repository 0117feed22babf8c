// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"adventure-story-api/internal/application/story"
	"adventure-story-api/internal/domain/entity"
	"adventure-story-api/internal/interfaces/http/dto"
	"adventure-story-api/internal/interfaces/http/middleware"
	apperrors "adventure-story-api/pkg/errors"
	"adventure-story-api/pkg/logger"
)

// StoryService 故事用例
type StoryService interface {
	CreateStory(ctx context.Context, theme, sessionID string) (*entity.StoryJob, error)
	GetJob(ctx context.Context, jobID string) (*entity.StoryJob, error)
	GetCompleteStory(ctx context.Context, storyID int64) (*story.CompleteStory, error)
}

// StoryHandler 故事处理器
type StoryHandler struct {
	svc StoryService
}

// NewStoryHandler 创建故事处理器
func NewStoryHandler(svc StoryService) *StoryHandler {
	return &StoryHandler{svc: svc}
}

// CreateStory 创建故事生成任务
// @Summary 创建故事
// @Description 提交主题，立即返回 pending 任务，生成在后台进行
// @Tags Stories
// @Accept json
// @Produce json
// @Param body body dto.CreateStoryRequest true "主题"
// @Success 200 {object} dto.JobResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /story/create [post]
func (h *StoryHandler) CreateStory(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.ErrorWithDetail(c, http.StatusBadRequest, "invalid request body", &dto.ErrorDetail{
			ErrorCode: string(apperrors.CodeInvalidParam),
			Details:   "theme is required",
		})
		return
	}

	job, err := h.svc.CreateStory(ctx, req.Theme, middleware.SessionID(c))
	if err != nil {
		writeError(c, "failed to create story job", err)
		return
	}

	c.JSON(http.StatusOK, dto.ToJobResponse(job))
}

// GetCompleteStory 获取完整故事树
// @Summary 获取完整故事
// @Tags Stories
// @Produce json
// @Param story_id path int true "故事 ID"
// @Success 200 {object} dto.CompleteStoryResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /story/{story_id}/complete [get]
func (h *StoryHandler) GetCompleteStory(c *gin.Context) {
	storyID, ok := dto.BindStoryID(c)
	if !ok {
		dto.BadRequest(c, "story_id must be an integer")
		return
	}

	ctx := logger.WithContext(c.Request.Context(), logger.StoryIDKey, storyID)
	cs, err := h.svc.GetCompleteStory(ctx, storyID)
	if err != nil {
		writeError(c, "failed to load story", err)
		return
	}

	c.JSON(http.StatusOK, dto.ToCompleteStoryResponse(cs))
}

// writeError 输出 AppError，5xx 记录错误日志
func writeError(c *gin.Context, msg string, err error) {
	if apperrors.AsAppError(err).HTTPStatus >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), msg, err)
	}
	dto.AppError(c, err)
}
