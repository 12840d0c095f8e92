package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Policy allows Attempts hits per fixed Window. Zero attempts disables throttling.
type Policy struct {
	Attempts int
	Window   time.Duration
}

// Enabled reports whether the policy limits anything.
func (p Policy) Enabled() bool { return p.Attempts > 0 }

// bucket returns the unix start of the window holding now and the time it ends.
func (p Policy) bucket(now time.Time) (int64, time.Time) {
	size := int64(p.Window / time.Second)
	if size <= 0 {
		size = 1
	}
	start := now.Unix() / size * size
	return start, time.Unix(start+size, 0).UTC()
}

// Decision is the outcome of one counted attempt.
type Decision struct {
	Allowed   bool
	Remaining int
	RetryAt   time.Time // End of the current window.
}

// Counter stores attempt counts per key and window.
type Counter interface {
	Hit(ctx context.Context, key string, policy Policy, now time.Time) (Decision, error)
	Forget(ctx context.Context, key string, policy Policy, now time.Time) error
}

// LoginKey identifies login attempts from one address for one username. The
// username is hashed so it never reaches Redis in clear text.
func LoginKey(clientIP, username string) string {
	clientIP = strings.TrimSpace(clientIP)
	username = strings.ToLower(strings.TrimSpace(username))
	if clientIP == "" && username == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(username))
	return "login:" + clientIP + ":" + hex.EncodeToString(sum[:8])
}
