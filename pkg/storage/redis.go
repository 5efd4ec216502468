package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thequtt/qutt-client/pkg/redis"
)

type redisKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Key(parts ...string) string
}

// RedisStore keeps values in Redis under "<namespace>:<scope>:<key>". Several
// clients can share one Redis as long as their scopes differ.
type RedisStore struct {
	client redisKV
	scope  string
}

func NewRedisStore(client *redis.Client, scope string) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisStore{client: client, scope: scope}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.client.Key(s.scope, key))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading %q: %w", key, err)
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.client.Key(s.scope, key), value, 0); err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.client.Key(s.scope, key)); err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}
