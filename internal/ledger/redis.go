package ledger

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLedger stores audit records in a shared Redis keyspace. Records are
// written without expiry; retention is the ledger operator's concern.
type RedisLedger struct {
	client *redis.Client
}

// NewRedisLedger wraps an existing Redis client.
func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

// Put implements Ledger.
func (l *RedisLedger) Put(ctx context.Context, key, value string) error {
	if err := l.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("ledger/redis: put %s: %w", key, err)
	}
	return nil
}

// Delete implements Ledger.
func (l *RedisLedger) Delete(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("ledger/redis: delete %s: %w", key, err)
	}
	return nil
}

var _ Ledger = (*RedisLedger)(nil)
