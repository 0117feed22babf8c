// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"

	"adventure-story-api/internal/config"
	"adventure-story-api/internal/interfaces/http/handler"
	"adventure-story-api/internal/interfaces/http/middleware"
)

// RegisterStoryRoutes 注册故事与任务路由
func RegisterStoryRoutes(
	api *gin.RouterGroup,
	cfg config.StoryConfig,
	storyHandler *handler.StoryHandler,
	jobHandler *handler.JobHandler,
	limiter middleware.RateLimiter,
) {
	story := api.Group("/story")
	{
		story.POST("/create",
			middleware.Session(cfg.SessionCookie),
			middleware.SessionRateLimit(cfg.CreateRateLimit, limiter),
			storyHandler.CreateStory,
		)
		story.GET("/:story_id/complete", storyHandler.GetCompleteStory)
	}

	api.GET("/job/:job_id", jobHandler.GetJob)
}
