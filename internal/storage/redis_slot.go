package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisSlot stores each value as a plain Redis string.
type RedisSlot struct {
	client *redis.Client
}

func NewRedisSlot(addr, password string) *RedisSlot {
	return &RedisSlot{client: redis.NewClient(&redis.Options{Addr: addr, Password: password})}
}

func (r *RedisSlot) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmptySlot
	}
	return b, err
}

func (r *RedisSlot) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *RedisSlot) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisSlot) Close() error { return r.client.Close() }
