package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"course_form_backend/internal/config"
	"course_form_backend/internal/controller"
	"course_form_backend/internal/repository"
	"course_form_backend/internal/service"
	"course_form_backend/pkg/configwatcher"
	"course_form_backend/pkg/database"
	"course_form_backend/pkg/logger"
	"course_form_backend/pkg/monitoring"
	"course_form_backend/pkg/security"
	"course_form_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client
}

type repositories struct {
	user   *repository.UserRepository
	form   *repository.FormRepository
	answer *repository.AnswerRepository
}

type services struct {
	session *service.SessionService
	form    *service.FormService
	answer  *service.AnswerService
	auth    *service.AuthService
}

type controllers struct {
	auth   *controller.AuthController
	form   *controller.FormController
	health *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:   repository.NewUserRepository(db),
		form:   repository.NewFormRepository(db),
		answer: repository.NewAnswerRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}
	s.session = service.NewSessionService(rdb, repos.answer, cfg)
	s.form = service.NewFormService(repos.form)
	s.answer = service.NewAnswerService(repos.answer, s.session)
	s.auth = service.NewAuthService(repos.user, s.session, s.form, cfg)
	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:   controller.NewAuthController(s.auth, a.Config),
		form:   controller.NewFormController(s.form, s.answer),
		health: controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.Server.Mode != "release" || cfg.ForceMigrate
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("course-form", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
			}
		}()
	}

	app.registerRoutes(router, controllers, services)

	return app
}

// applyConfig 把可热更新的字段套到运行中的配置上。各服务持有的是
// 同一个 Config 指针，会话空闲超时和限流参数改完即生效。
func (a *App) applyConfig(next *config.Config) {
	a.Config.ApplyHot(next)
	logger.Log.Info("Config reloaded",
		zap.Duration("session_idle_timeout", next.Session.IdleTimeout))
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 配置热更新
	go configwatcher.WatchConfig(filepath.Join("configs", "config.yaml"), a.applyConfig)

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
