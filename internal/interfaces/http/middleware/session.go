package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"adventure-story-api/internal/config"
	"adventure-story-api/pkg/logger"
)

const (
	// SessionIDContextKey gin Context 中的会话 ID
	SessionIDContextKey = "session_id"

	defaultSessionCookie = "session_id"
)

// Session 读取会话 cookie，缺失时签发新的 httponly cookie
func Session(cfg config.SessionCookieConfig) gin.HandlerFunc {
	name := cfg.Name
	if name == "" {
		name = defaultSessionCookie
	}
	maxAge := int(cfg.MaxAge.Seconds())

	return func(c *gin.Context) {
		sessionID, err := c.Cookie(name)
		if err != nil || sessionID == "" {
			sessionID = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(name, sessionID, maxAge, "/", "", cfg.Secure, true)
		}

		c.Set(SessionIDContextKey, sessionID)
		ctx := logger.WithContext(c.Request.Context(), logger.SessionIDKey, sessionID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// SessionID 返回当前请求的会话 ID
func SessionID(c *gin.Context) string {
	return c.GetString(SessionIDContextKey)
}
