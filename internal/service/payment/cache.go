// internal/service/payment/cache.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenCache caches the provider access token. It is an explicit dependency of
// the client so the TTL policy is injectable and nothing holds process-global
// state.
type TokenCache interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string, ttl time.Duration) error
}

type RedisTokenCache struct {
	client *redis.Client
	key    string
}

func NewRedisTokenCache(client *redis.Client, key string) *RedisTokenCache {
	if key == "" {
		key = "paypal:access_token"
	}
	return &RedisTokenCache{client: client, key: key}
}

// Get returns the cached token, or "" on a miss.
func (c *RedisTokenCache) Get(ctx context.Context) (string, error) {
	token, err := c.client.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token cache: %w", err)
	}
	return token, nil
}

func (c *RedisTokenCache) Set(ctx context.Context, token string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key, token, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write token cache: %w", err)
	}
	return nil
}
