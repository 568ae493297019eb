package security

import (
	"net/http"
	"sync"
	"time"

	"course_form_backend/internal/config"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CORS 仅允许白名单中的 Origin；表单会话走 cookie，跨站请求必须
// 带上 Credentials。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" && originSet[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		// 本服务只有 JSON 的 GET/POST 接口
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// Secure 中间件
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 防止MIME嗅探
		c.Header("X-Content-Type-Options", "nosniff")
		// 防止点击劫持
		c.Header("X-Frame-Options", "DENY")
		// XSS保护
		c.Header("X-XSS-Protection", "1; mode=block")
		// HSTS
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		}

		c.Next()
	}
}

// visitor 包装限流器和最后活跃时间，用于定期清理
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 按 IP 限流。限流参数每个请求都从配置读取，配置
// 热更新后旧参数下的限流器整体作废重建；过期条目定期清理。
func RateLimiter(cfg *config.Config) gin.HandlerFunc {
	var mu sync.Mutex
	store := make(map[string]*visitor)
	curMax, curWindow := cfg.RateLimitSettings()

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			mu.Lock()
			expiry := curWindow * 3
			if expiry < time.Minute {
				expiry = time.Minute
			}
			for ip, v := range store {
				if time.Since(v.lastSeen) > expiry {
					delete(store, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		maxRequests, window := cfg.RateLimitSettings()
		key := c.ClientIP()

		mu.Lock()
		if maxRequests != curMax || window != curWindow {
			store = make(map[string]*visitor)
			curMax, curWindow = maxRequests, window
		}

		v, exists := store[key]
		if !exists {
			v = &visitor{
				limiter: rate.NewLimiter(rate.Every(window/time.Duration(maxRequests)), maxRequests),
			}
			store[key] = v
		}
		v.lastSeen = time.Now()
		mu.Unlock()

		if !v.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}

		c.Next()
	}
}
