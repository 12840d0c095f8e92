package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter keeps attempt counts in Redis so several ILog processes share them.
type RedisCounter struct {
	client *redis.Client
	prefix string
}

// NewRedisCounter wraps client. Keys are stored below prefix.
func NewRedisCounter(client *redis.Client, prefix string) *RedisCounter {
	return &RedisCounter{client: client, prefix: strings.TrimSpace(prefix)}
}

// Hit counts one attempt for key. The counter key expires with its window.
func (c *RedisCounter) Hit(ctx context.Context, key string, policy Policy, now time.Time) (Decision, error) {
	if !policy.Enabled() || key == "" {
		return Decision{Allowed: true}, nil
	}
	start, end := policy.bucket(now)
	name := c.key(key, start)

	var incr *redis.IntCmd
	_, errPipe := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, name)
		pipe.ExpireAt(ctx, name, end.Add(time.Second))
		return nil
	})
	if errPipe != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis hit: %w", errPipe)
	}
	hits := int(incr.Val())
	if hits > policy.Attempts {
		return Decision{Allowed: false, RetryAt: end}, nil
	}
	return Decision{Allowed: true, Remaining: policy.Attempts - hits, RetryAt: end}, nil
}

// Forget deletes the current window of key.
func (c *RedisCounter) Forget(ctx context.Context, key string, policy Policy, now time.Time) error {
	start, _ := policy.bucket(now)
	if errDel := c.client.Del(ctx, c.key(key, start)).Err(); errDel != nil {
		return fmt.Errorf("ratelimit: redis forget: %w", errDel)
	}
	return nil
}

// Close closes the Redis client.
func (c *RedisCounter) Close() error { return c.client.Close() }

func (c *RedisCounter) key(key string, start int64) string {
	name := key + ":" + strconv.FormatInt(start, 10)
	if c.prefix == "" {
		return name
	}
	return c.prefix + ":" + name
}
