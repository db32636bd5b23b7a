package numbering

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/infrastructure/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Sequence hands out document numbers
type Sequence interface {
	Next(ctx context.Context, docType document.Type) (string, error)
}

// New builds the sequence selected by cfg.Numbering. There is no fallback
// from Redis to SQL: two independent counters would reissue numbers.
func New(cfg config.PostingConfig, redisCfg config.RedisConfig, db *gorm.DB, logger *zap.Logger) (Sequence, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	format := NewFormat(cfg.Prefixes, cfg.NumberWidth)

	switch cfg.Numbering {
	case config.NumberingRedis:
		seq, err := NewRedisSequence(redisCfg, format)
		if err != nil {
			return nil, err
		}
		logger.Info("Document numbering uses Redis", zap.String("addr", redisCfg.Addr()))
		return seq, nil
	case config.NumberingSQL, "":
		logger.Info("Document numbering uses the document_sequences table")
		return NewSQLSequence(db, format), nil
	default:
		return nil, fmt.Errorf("unknown numbering backend %q", cfg.Numbering)
	}
}
