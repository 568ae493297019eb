package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Session   SessionConfig `mapstructure:"session"`
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"` // 强制执行数据库迁移
	MigrateOnly  bool `mapstructure:"-"` // 仅迁移模式（迁移后退出）

	// 保护可热更新字段：配置监听 goroutine 写，请求 handler 读
	mu sync.RWMutex
}

// SessionIdleTimeout 会话空闲超时阈值。热更新字段，必须走这里读。
func (c *Config) SessionIdleTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Session.IdleTimeout
}

// RateLimitSettings 当前限流参数，非法值回落到默认。热更新字段。
func (c *Config) RateLimitSettings() (maxRequests int, window time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	maxRequests = c.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 600
	}
	window = time.Duration(c.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	return maxRequests, window
}

// ApplyHot 把重新加载出的配置里可热更新的字段套到运行中的实例上，
// 其余字段（连接地址、密钥等）只在启动时生效。
func (c *Config) ApplyHot(next *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Session.IdleTimeout = next.Session.IdleTimeout
	c.RateLimit = next.RateLimit
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

// SessionConfig 会话相关配置。IdleTimeout 是 now-loginTime 的过期
// 阈值，超时后会话标记为未认证但不销毁，已保存的答案仍可续填。
type SessionConfig struct {
	Secret      string        `mapstructure:"secret"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout_seconds"`
	CookieName  string        `mapstructure:"cookie_name"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("COURSE_FORM")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// Session
	viper.BindEnv("session.secret", "SESSION_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Session.IdleTimeout <= 0 {
		cfg.Session.IdleTimeout = 1800
	}
	cfg.Session.IdleTimeout = cfg.Session.IdleTimeout * time.Second

	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "form_session"
	}

	// 生产环境校验会话密钥强度
	if cfg.Server.Mode == "release" && len(cfg.Session.Secret) < 32 {
		return nil, fmt.Errorf("session secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.Session.Secret))
	}

	return &cfg, nil
}
