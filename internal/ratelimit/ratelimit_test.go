package ratelimit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/UfSoft/ILog-OLD/internal/config"
	"github.com/UfSoft/ILog-OLD/internal/settings"
)

func mustHit(t *testing.T, hit func() (Decision, error)) Decision {
	t.Helper()
	d, err := hit()
	if err != nil {
		t.Fatalf("hit: %v", err)
	}
	return d
}

func TestMemoryCounter_FixedWindow(t *testing.T) {
	counter := NewMemoryCounter()
	ctx := context.Background()
	policy := Policy{Attempts: 3, Window: time.Minute}
	base := time.Unix(1020, 0)
	hitAt := func(key string, at time.Time) Decision {
		return mustHit(t, func() (Decision, error) { return counter.Hit(ctx, key, policy, at) })
	}

	for i := 0; i < 3; i++ {
		d := hitAt("k", base.Add(time.Duration(i)*time.Second))
		if !d.Allowed {
			t.Fatalf("attempt %d should be allowed", i)
		}
		if d.Remaining != 2-i {
			t.Fatalf("attempt %d: expected remaining %d, got %d", i, 2-i, d.Remaining)
		}
		if want := time.Unix(1080, 0).UTC(); !d.RetryAt.Equal(want) {
			t.Fatalf("expected window end %v, got %v", want, d.RetryAt)
		}
	}
	if hitAt("k", base.Add(10*time.Second)).Allowed {
		t.Fatalf("fourth attempt in the window should be blocked")
	}
	if !hitAt("other", base).Allowed {
		t.Fatalf("other keys have their own budget")
	}
	if !hitAt("k", base.Add(2*time.Minute)).Allowed {
		t.Fatalf("a new window should reset the budget")
	}
}

func TestMemoryCounter_Forget(t *testing.T) {
	counter := NewMemoryCounter()
	ctx := context.Background()
	policy := Policy{Attempts: 1, Window: time.Minute}
	now := time.Unix(5000, 0)
	hit := func() (Decision, error) { return counter.Hit(ctx, "k", policy, now) }

	if !mustHit(t, hit).Allowed {
		t.Fatalf("first attempt should be allowed")
	}
	if mustHit(t, hit).Allowed {
		t.Fatalf("second attempt should be blocked")
	}
	if err := counter.Forget(ctx, "k", policy, now); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if !mustHit(t, hit).Allowed {
		t.Fatalf("forget should reset the counter")
	}
}

func TestThrottle_UsesStoreSettings(t *testing.T) {
	store, err := config.Load(filepath.Join(t.TempDir(), "ilog.ini"), settings.MainSection, config.DefaultVars(nil, nil), nil)
	if err != nil {
		t.Fatalf("load store: %v", err)
	}
	tx := store.Edit()
	if errSet := tx.Set(settings.LoginAttemptsKey, 2); errSet != nil {
		t.Fatalf("set attempts: %v", errSet)
	}
	if errSet := tx.Set(settings.LoginWindowKey, 300); errSet != nil {
		t.Fatalf("set window: %v", errSet)
	}
	if errCommit := tx.Commit(false); errCommit != nil {
		t.Fatalf("commit: %v", errCommit)
	}

	now := time.Unix(6000, 0)
	throttle := NewThrottle(FromStore(store), func() time.Time { return now }, nil)
	ctx := context.Background()
	attempt := func(ip, user string) Decision {
		return mustHit(t, func() (Decision, error) { return throttle.Attempt(ctx, ip, user) })
	}

	for i := 0; i < 2; i++ {
		if !attempt("10.0.0.1", "Admin").Allowed {
			t.Fatalf("attempt %d should be allowed", i)
		}
	}
	if attempt("10.0.0.1", "admin").Allowed {
		t.Fatalf("third attempt should be blocked, usernames fold case")
	}
	if !attempt("10.0.0.2", "admin").Allowed {
		t.Fatalf("another client address should not be blocked")
	}
	throttle.Succeeded(ctx, "10.0.0.1", "admin")
	if !attempt("10.0.0.1", "admin").Allowed {
		t.Fatalf("a successful login should reset the counter")
	}
}

func TestThrottle_DisabledWhenNoAttempts(t *testing.T) {
	throttle := NewThrottle(func() Settings { return Settings{} }, nil, nil)
	for i := 0; i < 100; i++ {
		d := mustHit(t, func() (Decision, error) { return throttle.Hit(context.Background(), "k") })
		if !d.Allowed {
			t.Fatalf("attempt %d blocked with throttling disabled", i)
		}
	}
}

func TestThrottle_RedisFailureFallsBackToMemory(t *testing.T) {
	cfg := Settings{
		Policy: Policy{Attempts: 1, Window: time.Minute},
		Redis:  RedisSettings{Enabled: true, Addr: "127.0.0.1:1", Prefix: "test"},
	}
	throttle := NewThrottle(func() Settings { return cfg }, nil, nil)
	defer func() { _ = throttle.Close() }()
	hit := func() (Decision, error) { return throttle.Hit(context.Background(), "k") }

	if !mustHit(t, hit).Allowed {
		t.Fatalf("first attempt should be allowed")
	}
	if mustHit(t, hit).Allowed {
		t.Fatalf("memory fallback should still count attempts")
	}
}

func TestReadSettings_Defaults(t *testing.T) {
	got := ReadSettings(nil)
	if got.Policy.Attempts != settings.DefaultLoginAttempts {
		t.Fatalf("expected %d attempts, got %d", settings.DefaultLoginAttempts, got.Policy.Attempts)
	}
	if want := settings.DefaultLoginWindowSeconds * time.Second; got.Policy.Window != want {
		t.Fatalf("expected window %v, got %v", want, got.Policy.Window)
	}
	if got.Redis.Prefix != settings.DefaultRateLimitRedisPrefix {
		t.Fatalf("expected prefix %q, got %q", settings.DefaultRateLimitRedisPrefix, got.Redis.Prefix)
	}
	if got.Redis.Enabled {
		t.Fatalf("redis should be off by default")
	}
}

func TestLoginKey(t *testing.T) {
	if LoginKey("1.2.3.4", "Bob") != LoginKey("1.2.3.4", " bob ") {
		t.Fatalf("usernames should be trimmed and folded")
	}
	if LoginKey("1.2.3.4", "bob") == LoginKey("1.2.3.5", "bob") {
		t.Fatalf("client addresses should produce distinct keys")
	}
	if key := LoginKey("", ""); key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}
