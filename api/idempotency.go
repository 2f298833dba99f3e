package api

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupeKeyPrefix = "idem"

// RedisDeduper stores the task created for each idempotency key in Redis so
// retried creates return the original task.
type RedisDeduper struct {
	client    *redis.Client
	ttl       time.Duration
	namespace string
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration, namespace string) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl, namespace: namespace}
}

func (r *RedisDeduper) key(key string) string {
	if r.namespace == "" {
		return fmt.Sprintf("%s:%s", dedupeKeyPrefix, key)
	}
	return fmt.Sprintf("%s:%s:%s", r.namespace, dedupeKeyPrefix, key)
}

// Lookup returns the task id recorded for key.
func (r *RedisDeduper) Lookup(ctx context.Context, key string) (int64, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("idempotency key %q holds %q: %w", key, val, err)
	}
	return id, true, nil
}

// Remember records id for key if the key does not already exist. It returns
// true when the key was newly added.
func (r *RedisDeduper) Remember(ctx context.Context, key string, id int64) (bool, error) {
	return r.client.SetNX(ctx, r.key(key), id, r.ttl).Result()
}
