package numbering

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// RedisSequence hands out numbers with INCR, one counter per document type.
// Suitable when several ledger processes share one Redis.
type RedisSequence struct {
	client    *redis.Client
	keyPrefix string
	format    Format
}

// NewRedisSequence connects to Redis and creates a sequence
func NewRedisSequence(cfg config.RedisConfig, format Format) (*RedisSequence, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisSequenceWithClient(client, cfg.KeyPrefix, format), nil
}

// NewRedisSequenceWithClient creates a sequence on an existing client
func NewRedisSequenceWithClient(client *redis.Client, keyPrefix string, format Format) *RedisSequence {
	if keyPrefix == "" {
		keyPrefix = "erp:ledger:"
	}
	return &RedisSequence{client: client, keyPrefix: keyPrefix, format: format}
}

func (s *RedisSequence) key(docType document.Type) string {
	return s.keyPrefix + "docseq:" + docType.String()
}

// Next returns the next number for docType
func (s *RedisSequence) Next(ctx context.Context, docType document.Type) (string, error) {
	n, err := s.client.Incr(ctx, s.key(docType)).Result()
	if err != nil {
		return "", fmt.Errorf("failed to increment %s sequence: %w", docType, err)
	}
	return s.format.Number(docType, n), nil
}

// Close closes the underlying client
func (s *RedisSequence) Close() error {
	return s.client.Close()
}
