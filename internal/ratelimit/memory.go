package ratelimit

import (
	"context"
	"sync"
	"time"
)

// pruneAbove is the number of tracked keys above which stale windows are dropped.
const pruneAbove = 4096

type window struct {
	start int64
	hits  int
}

// MemoryCounter keeps attempt counts in process memory.
type MemoryCounter struct {
	mu   sync.Mutex
	hits map[string]*window
}

// NewMemoryCounter returns an empty MemoryCounter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{hits: make(map[string]*window)}
}

// Hit counts one attempt for key.
func (c *MemoryCounter) Hit(_ context.Context, key string, policy Policy, now time.Time) (Decision, error) {
	if !policy.Enabled() || key == "" {
		return Decision{Allowed: true}, nil
	}
	start, end := policy.bucket(now)

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.hits) > pruneAbove {
		c.prune(start)
	}
	w, ok := c.hits[key]
	if !ok || w.start != start {
		w = &window{start: start}
		c.hits[key] = w
	}
	if w.hits >= policy.Attempts {
		return Decision{Allowed: false, RetryAt: end}, nil
	}
	w.hits++
	return Decision{Allowed: true, Remaining: policy.Attempts - w.hits, RetryAt: end}, nil
}

// Forget drops the count of key.
func (c *MemoryCounter) Forget(_ context.Context, key string, _ Policy, _ time.Time) error {
	c.mu.Lock()
	delete(c.hits, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCounter) prune(current int64) {
	for key, w := range c.hits {
		if w.start != current {
			delete(c.hits, key)
		}
	}
}
