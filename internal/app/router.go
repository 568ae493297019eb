package app

import (
	"course_form_backend/docs"
	"course_form_backend/internal/middleware"
	"course_form_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, s *services) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由（无需会话）：check_session 和 logout 也在这里——
	// 过期或缺失的会话要拿到正常响应体而不是 401
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
		public.POST("/logout", c.auth.Logout)
		public.GET("/session", c.auth.CheckSession)
		public.GET("/forms", c.form.ListForms)
	}

	// 需要有效会话的表单接口
	authGroup := router.Group("/api")
	authGroup.Use(middleware.SessionMiddleware(a.Config, s.session))
	{
		authGroup.GET("/forms/:id/questions", c.form.GetQuestions)
		authGroup.GET("/forms/:id/next-step", c.form.NextStep)
		authGroup.POST("/forms/:id/answers", c.form.AutoSave)
		authGroup.POST("/forms/:id/submit", c.form.Submit)
		authGroup.GET("/forms/:id/validate", c.form.Validate)
	}
}
