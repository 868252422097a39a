// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"internship-portal/internal/common/config"

	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	Client *redis.Client
}

func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	return &RedisClient{Client: rdb}, nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// Lock is a best-effort distributed lock held under a random token.
type Lock struct {
	client redis.Cmdable
	key    string
	token  string
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// TryLock acquires key for ttl. It returns nil, nil when another holder owns it.
func TryLock(ctx context.Context, client redis.Cmdable, key, token string, ttl time.Duration) (*Lock, error) {
	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lock{client: client, key: key, token: token}, nil
}

// Release deletes the lock only if it is still held by this token.
func (l *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}

// Allow implements a fixed-window counter: at most limit hits per window per key.
func Allow(ctx context.Context, client redis.Cmdable, key string, limit int, window time.Duration) (bool, error) {
	n, err := client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if n == 1 {
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("rate limit expiry %s: %w", key, err)
		}
	}
	return n <= int64(limit), nil
}
