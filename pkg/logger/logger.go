// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

type ctxKey string

// RunIDKey 上下文中求解任务ID的键
const RunIDKey ctxKey = "run_id"

// Config 日志配置
type Config struct {
	Level      string `json:"level"`
	Format     string `json:"format"` // json/console
	Output     string `json:"output"` // stdout/stderr/file
	FilePath   string `json:"file_path,omitempty"`
	TimeFormat string `json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器，只有第一次调用生效
func Init(cfg Config) {
	once.Do(func() {
		zerolog.SetGlobalLevel(parseLevel(cfg.Level))

		var output io.Writer
		switch cfg.Output {
		case "stdout":
			output = os.Stdout
		case "file":
			output = os.Stderr
			if cfg.FilePath != "" {
				if f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
					output = f
				}
			}
		default:
			output = os.Stderr
		}

		if cfg.Format == "console" {
			timeFormat := cfg.TimeFormat
			if timeFormat == "" {
				timeFormat = time.RFC3339
			}
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: timeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	Init(DefaultConfig())
	return &logger
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		l = l.With().Str("run_id", runID).Logger()
	}
	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// SchedulerLogger 排班引擎专用日志器
type SchedulerLogger struct {
	base *zerolog.Logger
}

// NewSchedulerLogger 创建排班引擎日志器
func NewSchedulerLogger() *SchedulerLogger {
	l := Get().With().Str("component", "scheduler").Logger()
	return &SchedulerLogger{base: &l}
}

// With 返回附带求解任务ID的日志器
func (l *SchedulerLogger) With(runID string) *SchedulerLogger {
	nl := l.base.With().Str("run_id", runID).Logger()
	return &SchedulerLogger{base: &nl}
}

// StartSolve 记录排班开始
func (l *SchedulerLogger) StartSolve(residents, weeks, shifts int) {
	l.base.Info().
		Int("residents", residents).
		Int("weeks", weeks).
		Int("shifts", shifts).
		Msg("开始生成排班")
}

// FamilyEncoded 记录某类约束的编码结果
func (l *SchedulerLogger) FamilyEncoded(family string, constraints int) {
	l.base.Debug().
		Str("family", family).
		Int("constraints", constraints).
		Msg("约束编码完成")
}

// ModelBuilt 记录模型规模
func (l *SchedulerLogger) ModelBuilt(variables, constraints int) {
	l.base.Info().
		Int("variables", variables).
		Int("constraints", constraints).
		Msg("模型构建完成")
}

// ConstraintViolation 记录约束违反
func (l *SchedulerLogger) ConstraintViolation(constraint, details string) {
	l.base.Warn().
		Str("constraint", constraint).
		Str("details", details).
		Msg("约束违反")
}

// SolveComplete 记录排班完成
func (l *SchedulerLogger) SolveComplete(status string, duration time.Duration, objective, requests int64) {
	l.base.Info().
		Str("status", status).
		Dur("wall_time", duration).
		Int64("objective", objective).
		Int64("requests", requests).
		Msg("排班生成完成")
}

// Infeasible 记录无可行解
func (l *SchedulerLogger) Infeasible(duration time.Duration) {
	l.base.Warn().
		Dur("wall_time", duration).
		Msg("模型无可行解")
}

// Timeout 记录求解超时
func (l *SchedulerLogger) Timeout(duration time.Duration) {
	l.base.Warn().
		Dur("wall_time", duration).
		Msg("求解超时，未得到可行解")
}

// WarmStart 记录构造出的初始解
func (l *SchedulerLogger) WarmStart(source string, objective int64) {
	l.base.Info().
		Str("source", source).
		Int64("objective", objective).
		Msg("已得到初始排班")
}

// Improved 记录邻域搜索得到的更好解
func (l *SchedulerLogger) Improved(neighborhood string, objective int64) {
	l.base.Debug().
		Str("neighborhood", neighborhood).
		Int64("objective", objective).
		Msg("目标值提升")
}

// RoundsExhausted 记录被放弃的求解轮次占满名额
func (l *SchedulerLogger) RoundsExhausted(inFlight int) {
	l.base.Warn().
		Int("in_flight", inFlight).
		Msg("后台求解占满名额，拒绝新的求解")
}
