package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// queryLogger sends GORM output to slog. By default only failed and slow
// statements are logged; ErrRecordNotFound is never treated as a failure.
type queryLogger struct {
	log   *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

func newQueryLogger(l *slog.Logger, slow time.Duration) *queryLogger {
	return &queryLogger{log: l, level: logger.Warn, slow: slow}
}

func (q *queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *q
	cp.level = level
	return &cp
}

func (q *queryLogger) Info(ctx context.Context, msg string, data ...any) {
	q.logf(ctx, logger.Info, slog.LevelInfo, msg, data)
}

func (q *queryLogger) Warn(ctx context.Context, msg string, data ...any) {
	q.logf(ctx, logger.Warn, slog.LevelWarn, msg, data)
}

func (q *queryLogger) Error(ctx context.Context, msg string, data ...any) {
	q.logf(ctx, logger.Error, slog.LevelError, msg, data)
}

func (q *queryLogger) logf(ctx context.Context, threshold logger.LogLevel, level slog.Level, msg string, data []any) {
	if q.level >= threshold {
		q.log.Log(ctx, level, fmt.Sprintf(msg, data...))
	}
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var (
		level slog.Level
		msg   string
	)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && q.level >= logger.Error:
		level, msg = slog.LevelError, "query failed"
	case q.slow > 0 && elapsed > q.slow && q.level >= logger.Warn:
		level, msg = slog.LevelWarn, "slow query"
	case q.level >= logger.Info:
		level, msg = slog.LevelInfo, "query"
	default:
		return
	}

	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}
	if level == slog.LevelError {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	q.log.LogAttrs(ctx, level, msg, attrs...)
}
