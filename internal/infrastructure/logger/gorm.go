package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes gorm's SQL log through zap. A statement that gave up
// waiting for a row lock is logged at warn as "sql lock wait exceeded", so a
// posting that lost a race on a lot reads differently from a broken query.
type GormLogger struct {
	log   *zap.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

// NewGormLogger creates a gorm logger writing under the "gorm" name.
// A zero slow threshold turns slow statement warnings off.
func NewGormLogger(log *zap.Logger, level gormlogger.LogLevel, slow time.Duration) *GormLogger {
	return &GormLogger{log: log.Named("gorm"), level: level, slow: slow}
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *GormLogger) Info(_ context.Context, msg string, data ...any) {
	l.printf(gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	l.printf(gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(_ context.Context, msg string, data ...any) {
	l.printf(gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) printf(min gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.level < min {
		return
	}
	l.log.Log(lvl, fmt.Sprintf(msg, data...))
}

// Trace implements gormlogger.Interface
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	if errors.Is(err, gormlogger.ErrRecordNotFound) {
		err = nil
	}

	switch {
	case err != nil && l.level >= gormlogger.Error:
		fields := append(statementFields(ctx, fc, elapsed), zap.Error(err))
		if isLockWait(err) {
			l.log.Warn("sql lock wait exceeded", fields...)
			return
		}
		l.log.Error("sql error", fields...)
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		l.log.Warn("slow sql", append(statementFields(ctx, fc, elapsed), zap.Duration("threshold", l.slow))...)
	case l.level >= gormlogger.Info:
		l.log.Debug("sql", statementFields(ctx, fc, elapsed)...)
	}
}

func statementFields(ctx context.Context, fc func() (string, int64), elapsed time.Duration) []zap.Field {
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}
	if companyID := CompanyID(ctx); companyID != "" {
		fields = append(fields, zap.String("company_id", companyID))
	}
	return fields
}

// isLockWait matches postgres lock_timeout cancellations (SQLSTATE 55P03)
// and sqlite's busy error.
func isLockWait(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "lock timeout") ||
		strings.Contains(msg, "55p03") ||
		strings.Contains(msg, "database is locked")
}

// MapGormLogLevel maps a config level name to a gorm level; unknown names map to warn.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
