package activity

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink publishes events on a pub/sub channel.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink connects to redis and verifies connectivity.
func NewRedisSink(ctx context.Context, addr string, db int, channel string) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisSink{client: client, channel: channel}, nil
}

func (s *RedisSink) Publish(ctx context.Context, ev Event) error {
	b, err := ev.Marshal()
	if err != nil {
		return err
	}
	if err := s.client.Publish(ctx, s.channel, b).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", ev.Kind, err)
	}
	return nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
