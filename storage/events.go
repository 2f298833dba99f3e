package storage

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"tasks-api/domain"
)

// RedisPublisher announces task changes on a Redis pub/sub channel so other
// development tools can follow the mock backend.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher for the given channel.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Publish sends ev as JSON to the configured channel.
func (p *RedisPublisher) Publish(ctx context.Context, ev domain.TaskEvent) error {
	payload, err := sonic.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s to %s: %w", ev.Type, p.channel, err)
	}
	return nil
}
