package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisSource reads one string value from Redis.
type RedisSource struct {
	client redisGetter
	key    string
}

func NewRedisSource(client redisGetter, key string) *RedisSource {
	return &RedisSource{client: client, key: key}
}

func (r *RedisSource) Load(ctx context.Context) ([]byte, error) {
	b, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: redis key %q", ErrNotFound, r.key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get redis key %q: %w", r.key, err)
	}
	return b, nil
}
