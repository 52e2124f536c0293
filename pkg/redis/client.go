package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// unlockScript deletes the key only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Client wraps go-redis client with optional logger.
type Client struct {
	*redis.Client
	logger *zap.Logger
}

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("Redis client connected", zap.String("addr", addr))
	return &Client{Client: rdb, logger: logger}, nil
}

// TryLock takes a short-lived exclusive lock on key. When acquired is false
// another holder owns the key. The returned unlock is a no-op if the lock
// already expired and was taken by someone else.
func (c *Client) TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context), acquired bool, err error) {
	token := uuid.NewString()
	ok, err := c.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("setnx %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	unlock = func(ctx context.Context) {
		if err := unlockScript.Run(ctx, c.Client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			c.logger.Warn("redis unlock failed", zap.String("key", key), zap.Error(err))
		}
	}
	return unlock, true, nil
}
