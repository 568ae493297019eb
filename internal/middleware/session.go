package middleware

import (
	"strings"

	"course_form_backend/internal/config"
	"course_form_backend/internal/service"
	"course_form_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// SessionMiddleware 从会话 cookie（或 Bearer 头兜底）解出会话 id，
// 取回服务端会话记录并做过期判定。过期会话只是未认证，记录和
// 已持久化的答案都保留，等用户重新登录续填。
func SessionMiddleware(cfg *config.Config, sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie(cfg.Session.CookieName)
		if err != nil || tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader != "" {
				tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseSessionToken(tokenString, cfg.Session.Secret)
		if err != nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		sess, err := sessions.Get(c.Request.Context(), claims.SessionID)
		if err != nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		if !sess.Authenticated {
			util.Error(c, 401, util.ErrSessionExpired.Error())
			c.Abort()
			return
		}

		// 认证通过即视为一次活跃，空闲计时重置
		if err := sessions.Touch(c.Request.Context(), sess); err != nil {
			util.LogInternalError(c, err)
			c.Abort()
			return
		}

		c.Set("session", sess)
		c.Next()
	}
}

// GetSessionFromContext 取出中间件塞进来的会话句柄。
func GetSessionFromContext(c *gin.Context) *service.SessionContext {
	v, exists := c.Get("session")
	if !exists {
		return nil
	}
	sess, ok := v.(*service.SessionContext)
	if !ok {
		return nil
	}
	return sess
}
