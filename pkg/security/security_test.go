package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"course_form_backend/internal/config"

	"github.com/gin-gonic/gin"
)

func newLimitedRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimiter(cfg))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func get(r *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterEnforcesCeiling(t *testing.T) {
	cfg := &config.Config{RateLimit: config.RateLimitConfig{MaxRequests: 2, WindowMinutes: 1}}
	r := newLimitedRouter(cfg)

	for i := 0; i < 2; i++ {
		if w := get(r, nil); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}
	if w := get(r, nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("over-limit request: status = %d, want 429", w.Code)
	}
}

// 配置热更新后限流器按新参数重建，旧的计数不再生效
func TestRateLimiterPicksUpReloadedConfig(t *testing.T) {
	cfg := &config.Config{RateLimit: config.RateLimitConfig{MaxRequests: 1, WindowMinutes: 1}}
	r := newLimitedRouter(cfg)

	if w := get(r, nil); w.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", w.Code)
	}
	if w := get(r, nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", w.Code)
	}

	cfg.ApplyHot(&config.Config{RateLimit: config.RateLimitConfig{MaxRequests: 10, WindowMinutes: 1}})

	for i := 0; i < 3; i++ {
		if w := get(r, nil); w.Code != http.StatusOK {
			t.Fatalf("post-reload request %d: status = %d, want 200", i+1, w.Code)
		}
	}
}

func TestCORSOriginAllowlist(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:5173"}))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := get(r, map[string]string{"Origin": "http://localhost:5173"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q, want the whitelisted origin echoed", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q, want true", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Errorf("Allow-Methods = %q", got)
	}

	w = get(r, map[string]string{"Origin": "http://evil.example"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin must not be echoed, got %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:5173"}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
}
