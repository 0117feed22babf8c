// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// BindJobID 从路径绑定任务 ID
func BindJobID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("job_id"))
}

// BindStoryID 从路径绑定故事 ID，非整数返回 false
func BindStoryID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("story_id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
