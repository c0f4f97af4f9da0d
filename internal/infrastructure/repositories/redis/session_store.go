package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
)

// RedisSessionStore keeps one key per client entry so that sessions survive
// restarts and are shared between instances.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

func NewRedisSessionStore(client *redis.Client, prefix string) ports.SessionStore {
	return &RedisSessionStore{client: client, prefix: prefix}
}

func sessionKey(prefix, clientID, key string) string {
	return prefix + "session:" + clientID + ":" + key
}

func (s *RedisSessionStore) Get(ctx context.Context, clientID, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, sessionKey(s.prefix, clientID, key)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}
	return data, nil
}

// Set stores value; ttl <= 0 keeps it until deleted.
func (s *RedisSessionStore) Set(ctx context.Context, clientID, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, sessionKey(s.prefix, clientID, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session in Redis: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, clientID, key string) error {
	if err := s.client.Del(ctx, sessionKey(s.prefix, clientID, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}
	return nil
}
