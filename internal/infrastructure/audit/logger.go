// Package audit records posting state transitions and validation failures.
package audit

import (
	"context"
	"fmt"
	"sort"

	"github.com/erp/ledger/internal/application/posting"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Logger writes audit events through zap under the "audit" logger name.
// LogEvent never panics; a panic raised while encoding is recovered and
// reported as an error.
type Logger struct {
	log *zap.Logger
}

// NewLogger creates an audit logger
func NewLogger(l *zap.Logger) *Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &Logger{log: l.Named("audit")}
}

// LogEvent writes one audit entry
func (a *Logger) LogEvent(ctx context.Context, ev posting.AuditEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("audit log panicked: %v", r)
		}
	}()

	fields := make([]zap.Field, 0, len(ev.Context)+1)
	fields = append(fields, zap.String("action", ev.Action))
	keys := make([]string, 0, len(ev.Context))
	for k := range ev.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, zap.Any(k, ev.Context[k]))
	}

	log := logger.Enrich(ctx, a.log)
	switch ev.Severity {
	case posting.SeverityError:
		log.Error(ev.Message, fields...)
	case posting.SeverityWarning:
		log.Warn(ev.Message, fields...)
	default:
		log.Info(ev.Message, fields...)
	}
	return nil
}

var _ posting.AuditSink = (*Logger)(nil)
