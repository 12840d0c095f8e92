package ratelimit

import (
	"strings"
	"time"

	"github.com/UfSoft/ILog-OLD/internal/config"
	"github.com/UfSoft/ILog-OLD/internal/settings"
)

// RedisSettings selects the shared Redis backend.
type RedisSettings struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Settings is a snapshot of the ratelimit/* configuration keys.
type Settings struct {
	Policy Policy
	Redis  RedisSettings
}

// SettingsFunc returns the current settings.
type SettingsFunc func() Settings

// DefaultSettings is used when no configuration store is available.
func DefaultSettings() Settings {
	return Settings{
		Policy: Policy{
			Attempts: settings.DefaultLoginAttempts,
			Window:   settings.DefaultLoginWindowSeconds * time.Second,
		},
		Redis: RedisSettings{Prefix: settings.DefaultRateLimitRedisPrefix},
	}
}

// FromStore reads the throttling settings from the instance configuration on every call,
// so edits from the admin panel apply to the next login attempt.
func FromStore(store *config.Store) SettingsFunc {
	return func() Settings { return ReadSettings(store) }
}

// ReadSettings reads one settings snapshot.
func ReadSettings(store *config.Store) Settings {
	out := DefaultSettings()
	if store == nil {
		return out
	}
	out.Policy.Attempts = max(store.Int(settings.LoginAttemptsKey), 0)
	if seconds := store.Int(settings.LoginWindowKey); seconds > 0 {
		out.Policy.Window = time.Duration(seconds) * time.Second
	}
	out.Redis = RedisSettings{
		Enabled:  store.Bool(settings.RateLimitRedisEnabledKey),
		Addr:     strings.TrimSpace(store.String(settings.RateLimitRedisAddrKey)),
		Password: strings.TrimSpace(store.String(settings.RateLimitRedisPasswordKey)),
		DB:       max(store.Int(settings.RateLimitRedisDBKey), 0),
		Prefix:   strings.TrimSpace(store.String(settings.RateLimitRedisPrefixKey)),
	}
	if out.Redis.Prefix == "" {
		out.Redis.Prefix = settings.DefaultRateLimitRedisPrefix
	}
	return out
}
