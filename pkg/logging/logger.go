// Package logging 结构化日志
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// ContextKey 上下文键类型
type ContextKey string

const (
	TraceIDKey  ContextKey = "trace_id"
	ReportIDKey ContextKey = "report_id"
	PhaseKey    ContextKey = "phase"
)

// Logger 结构化日志器
type Logger struct {
	*slog.Logger
	component string
}

// Config 日志配置
type Config struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"` // json or text
	Output    string `yaml:"output"` // stdout, stderr, or file path
	Component string `yaml:"-"`
}

// ParseLevel 将字符串级别转换为 slog.Level，未知值回退到 info
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New 创建新的日志器
func New(cfg Config) *Logger {
	level := ParseLevel(cfg.Level)

	var output io.Writer
	switch cfg.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			output = os.Stdout
		} else {
			output = f
		}
	}

	return NewWithWriter(output, level, cfg.Format, cfg.Component)
}

// NewWithWriter 使用指定 Writer 创建日志器（测试中常用 io.Discard 或 bytes.Buffer）
func NewWithWriter(w io.Writer, level slog.Level, format, component string) *Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		Logger:    slog.New(handler).With(slog.String("component", component)),
		component: component,
	}
}

// Default 创建默认日志器
func Default(component string) *Logger {
	return New(Config{
		Level:     os.Getenv("LOG_LEVEL"),
		Format:    os.Getenv("LOG_FORMAT"),
		Output:    "stdout",
		Component: component,
	})
}

// Discard 丢弃所有输出的日志器
func Discard() *Logger {
	return NewWithWriter(io.Discard, slog.LevelError, "text", "discard")
}

// WithContext 从上下文提取追踪信息
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var attrs []any
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		attrs = append(attrs, slog.String("trace_id", traceID))
	}
	if reportID, ok := ctx.Value(ReportIDKey).(string); ok && reportID != "" {
		attrs = append(attrs, slog.String("report_id", reportID))
	}
	if phase, ok := ctx.Value(PhaseKey).(string); ok && phase != "" {
		attrs = append(attrs, slog.String("phase", phase))
	}
	if len(attrs) == 0 {
		return l
	}
	return l.with(attrs...)
}

// WithReportID 添加 Report ID
func (l *Logger) WithReportID(reportID string) *Logger {
	return l.with(slog.String("report_id", reportID))
}

// WithPhase 添加任务阶段
func (l *Logger) WithPhase(phase string) *Logger {
	return l.with(slog.String("phase", phase))
}

// WithError 添加错误信息
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.with(slog.String("error", err.Error()))
}

// WithField 添加任意字段
func (l *Logger) WithField(key string, value any) *Logger {
	return l.with(slog.Any(key, value))
}

// WithDuration 添加持续时间
func (l *Logger) WithDuration(d time.Duration) *Logger {
	return l.with(slog.Float64("duration_ms", float64(d.Milliseconds())))
}

func (l *Logger) with(attrs ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(attrs...),
		component: l.component,
	}
}

// HTTPRequestLog HTTP 请求日志
func (l *Logger) HTTPRequestLog(method, path string, status int, duration time.Duration) {
	l.Logger.Info("HTTP request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
}

// StorageOpLog 对象存储操作日志
func (l *Logger) StorageOpLog(op, objectName string, attempt int, duration time.Duration, err error) {
	attrs := []any{
		slog.String("op", op),
		slog.String("object", objectName),
		slog.Int("attempt", attempt),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		l.Logger.Warn("Storage op failed", attrs...)
	} else {
		l.Logger.Debug("Storage op", attrs...)
	}
}
