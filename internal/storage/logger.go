package storage

import (
	"context"
	"errors"
	"time"

	"navguard/internal/ctxkeys"
	logger2 "navguard/internal/logger"

	"gorm.io/gorm/logger"
)

// 超过该时长的SQL记为慢查询
const slowThreshold = 200 * time.Millisecond

// GormLogger 将 GORM 日志转发到 navguard 日志，附带视图追踪ID
type GormLogger struct {
	logger2.Logger
	LogLevel logger.LogLevel
}

// NewGormLogger 创建 GormLogger，默认只输出告警及以上
func NewGormLogger(l logger2.Logger) *GormLogger {
	return &GormLogger{
		Logger:   l.With("component", "journal"),
		LogLevel: logger.Warn,
	}
}

// LogMode 设置日志级别
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Info {
		l.Logger.Info(msg, l.fields(ctx, "data", data)...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Warn {
		l.Logger.Warn(msg, l.fields(ctx, "data", data)...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Error {
		l.Logger.Error(msg, l.fields(ctx, "data", data)...)
	}
}

// Trace 记录SQL，出错或慢查询时提升级别
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := l.fields(ctx,
		"sql", sql,
		"rows", rows,
		"timeMs", float64(elapsed.Nanoseconds())/1e6,
	)

	switch {
	case err != nil && !errors.Is(err, logger.ErrRecordNotFound) && l.LogLevel >= logger.Error:
		l.Logger.Err(err, "审计日志SQL执行错误", fields...)
	case elapsed > slowThreshold && l.LogLevel >= logger.Warn:
		l.Logger.Warn("审计日志慢SQL", append(fields, "threshold", slowThreshold.String())...)
	case l.LogLevel == logger.Info:
		l.Logger.Debug("审计日志SQL", fields...)
	}
}

func (l *GormLogger) fields(ctx context.Context, kv ...any) []any {
	if id := ctxkeys.TraceID(ctx); id != "" {
		return append([]any{"viewId", id}, kv...)
	}
	return kv
}
