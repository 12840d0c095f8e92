package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// redisPause is how long Redis is skipped after it failed.
const redisPause = 30 * time.Second

const redisDialTimeout = 2 * time.Second

// RedisDialer creates a Redis client.
type RedisDialer func(options *redis.Options) *redis.Client

// Throttle limits login attempts per client address and username. Counts live
// in Redis when it is configured and reachable, in memory otherwise.
type Throttle struct {
	settings SettingsFunc
	now      func() time.Time
	dial     RedisDialer
	memory   *MemoryCounter

	mu          sync.Mutex
	shared      *RedisCounter
	sharedWith  RedisSettings
	pausedUntil time.Time
}

// NewThrottle returns a Throttle. Nil arguments select the defaults.
func NewThrottle(settingsFn SettingsFunc, now func() time.Time, dial RedisDialer) *Throttle {
	if settingsFn == nil {
		settingsFn = DefaultSettings
	}
	if now == nil {
		now = time.Now
	}
	if dial == nil {
		dial = redis.NewClient
	}
	return &Throttle{settings: settingsFn, now: now, dial: dial, memory: NewMemoryCounter()}
}

// Attempt counts one login attempt and reports whether it may proceed.
func (t *Throttle) Attempt(ctx context.Context, clientIP, username string) (Decision, error) {
	return t.Hit(ctx, LoginKey(clientIP, username))
}

// Succeeded clears the attempts counted for a login that went through.
func (t *Throttle) Succeeded(ctx context.Context, clientIP, username string) {
	t.Forget(ctx, LoginKey(clientIP, username))
}

// Hit counts one attempt for key.
func (t *Throttle) Hit(ctx context.Context, key string) (Decision, error) {
	if t == nil || key == "" {
		return Decision{Allowed: true}, nil
	}
	cfg := t.settings()
	if !cfg.Policy.Enabled() {
		return Decision{Allowed: true}, nil
	}
	now := t.now()
	if shared := t.sharedCounter(ctx, cfg.Redis, now); shared != nil {
		decision, errHit := shared.Hit(ctx, key, cfg.Policy, now)
		if errHit == nil {
			return decision, nil
		}
		t.pause(errHit, now)
	}
	return t.memory.Hit(ctx, key, cfg.Policy, now)
}

// Forget drops the count of key in every backend.
func (t *Throttle) Forget(ctx context.Context, key string) {
	if t == nil || key == "" {
		return
	}
	cfg := t.settings()
	now := t.now()
	_ = t.memory.Forget(ctx, key, cfg.Policy, now)
	if shared := t.sharedCounter(ctx, cfg.Redis, now); shared != nil {
		if errForget := shared.Forget(ctx, key, cfg.Policy, now); errForget != nil {
			t.pause(errForget, now)
		}
	}
}

// sharedCounter returns the Redis counter for cfg, dialing it on first use or
// after the settings changed. It returns nil while Redis is disabled or paused.
func (t *Throttle) sharedCounter(ctx context.Context, cfg RedisSettings, now time.Time) *RedisCounter {
	if !cfg.Enabled {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.Before(t.pausedUntil) {
		return nil
	}
	if t.shared != nil && t.sharedWith == cfg {
		return t.shared
	}
	t.closeShared()

	if cfg.Addr == "" {
		t.pauseLocked(errors.New("ratelimit: redis address is not set"), now)
		return nil
	}
	client := t.dial(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		_ = client.Close()
		t.pauseLocked(errPing, now)
		return nil
	}
	t.shared = NewRedisCounter(client, cfg.Prefix)
	t.sharedWith = cfg
	return t.shared
}

func (t *Throttle) pause(err error, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pauseLocked(err, now)
}

func (t *Throttle) pauseLocked(err error, now time.Time) {
	if now.Before(t.pausedUntil) {
		return
	}
	t.pausedUntil = now.Add(redisPause)
	log.WithError(err).Warn("ratelimit: redis unavailable, counting login attempts in memory")
}

func (t *Throttle) closeShared() {
	if t.shared == nil {
		return
	}
	if errClose := t.shared.Close(); errClose != nil {
		log.WithError(errClose).Debug("ratelimit: close redis client")
	}
	t.shared = nil
}

// Close releases the Redis client, if any.
func (t *Throttle) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shared == nil {
		return nil
	}
	errClose := t.shared.Close()
	t.shared = nil
	return errClose
}
