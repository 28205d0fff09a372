// Package config 提供配置管理
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/paiban/residency/pkg/model"
)

// Config 应用配置
type Config struct {
	App       AppConfig       `envPrefix:"APP_"`
	Database  DatabaseConfig  `envPrefix:"DB_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	API       APIConfig       `envPrefix:"API_"`
	Scheduler SchedulerConfig `envPrefix:"SCHEDULER_"`
	Metrics   MetricsConfig   `envPrefix:"METRICS_"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name      string `env:"NAME" envDefault:"residency"`
	Env       string `env:"ENV" envDefault:"development"`
	Port      int    `env:"PORT" envDefault:"7012"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"` // console/json
}

// DatabaseConfig 数据库配置，Enabled 为 false 时不持久化排班
type DatabaseConfig struct {
	Enabled         bool          `env:"ENABLED" envDefault:"false"`
	Host            string        `env:"HOST" envDefault:"localhost"`
	Port            int           `env:"PORT" envDefault:"5432"`
	Name            string        `env:"NAME" envDefault:"residency"`
	User            string        `env:"USER" envDefault:"residency"`
	Password        string        `env:"PASSWORD"`
	SSLMode         string        `env:"SSL_MODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"5m"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig Redis配置，Enabled 为 false 时不缓存求解结果
type RedisConfig struct {
	Enabled  bool          `env:"ENABLED" envDefault:"false"`
	Host     string        `env:"HOST" envDefault:"localhost"`
	Port     int           `env:"PORT" envDefault:"6379"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	PoolSize int           `env:"POOL_SIZE" envDefault:"10"`
	TTL      time.Duration `env:"TTL" envDefault:"24h"`
}

// Addr 返回Redis地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// APIConfig API配置
type APIConfig struct {
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"60s"`
	MaxBodyBytes int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	RateLimit    int           `env:"RATE_LIMIT" envDefault:"30"` // 每个IP每窗口最多求解请求数，0 表示不限
	RateWindow   time.Duration `env:"RATE_WINDOW" envDefault:"1m"`
}

// SchedulerConfig 排班引擎配置
type SchedulerConfig struct {
	Residents   int           `env:"RESIDENTS" envDefault:"4"`
	Weeks       int           `env:"WEEKS" envDefault:"4"`
	MinPerShift int           `env:"MIN_PER_SHIFT" envDefault:"1"`
	MaxPerShift int           `env:"MAX_PER_SHIFT" envDefault:"2"`
	MinTotal    int           `env:"MIN_TOTAL" envDefault:"30"`
	MaxTotal    int           `env:"MAX_TOTAL" envDefault:"40"`
	Seed        int64         `env:"SEED" envDefault:"936"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"30s"`
	BigM        int64         `env:"BIG_M" envDefault:"0"` // 0 表示使用推导值
	Workers     int           `env:"WORKERS" envDefault:"4"`
	MaxRounds   int           `env:"MAX_ROUNDS" envDefault:"0"` // 同时运行的求解轮数上限，0 表示 CPU 核数
	WarmStart   bool          `env:"WARM_START" envDefault:"true"`
}

// Params 返回默认排班参数
func (c *SchedulerConfig) Params() model.Params {
	return model.Params{
		Residents:   c.Residents,
		Weeks:       c.Weeks,
		MinPerShift: c.MinPerShift,
		MaxPerShift: c.MaxPerShift,
		MinTotal:    c.MinTotal,
		MaxTotal:    c.MaxTotal,
	}
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Path    string `env:"PATH" envDefault:"/metrics"`
}

// Load 从环境变量加载配置，当前目录存在 .env 时先加载
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		var aggErr env.AggregateError
		if errors.As(err, &aggErr) && len(aggErr.Errors) > 0 {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
