package recordstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/illmade-knight/go-queueingest/pkg/types"
	"github.com/rs/zerolog"
)

// RedisWriter implements Writer with plain SET commands under a key prefix.
type RedisWriter struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisWriter creates a writer storing records as "<prefix>:<key>".
// A zero ttl keeps records indefinitely.
func NewRedisWriter(client *redis.Client, prefix string, ttl time.Duration, logger zerolog.Logger) (*RedisWriter, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if prefix == "" {
		return nil, fmt.Errorf("%w: redis key prefix is empty", types.ErrConfiguration)
	}
	return &RedisWriter{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With().Str("component", "RedisWriter").Str("prefix", prefix).Logger(),
	}, nil
}

// Put implements Writer.
func (w *RedisWriter) Put(ctx context.Context, key, content string) error {
	if err := w.client.Set(ctx, w.RedisKey(key), content, w.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET for %s: %w", key, err)
	}
	w.logger.Debug().Str("key", key).Msg("Record written to Redis.")
	return nil
}

// RedisKey returns the Redis key a record is stored under.
func (w *RedisWriter) RedisKey(key string) string {
	return w.prefix + ":" + key
}

// Check pings the server.
func (w *RedisWriter) Check(ctx context.Context) error {
	if err := w.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	return nil
}

// Close does not close the injected client.
func (w *RedisWriter) Close() error {
	return nil
}
