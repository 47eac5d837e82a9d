package main

import (
	"sync"
	"time"
)

// rateLimiter is a fixed-window per-key limiter held in process. A limit or
// window of zero disables limiting entirely.
type rateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*rateWindow

	// now is overridable in tests; nil means time.Now.
	now func() time.Time
}

type rateWindow struct {
	start time.Time
	count int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*rateWindow),
	}
}

// allow records an attempt for key and reports whether it fits in the current
// window. When it does not, the second return value is the number of seconds
// until the window resets.
func (rl *rateLimiter) allow(key string) (bool, int) {
	if rl.limit <= 0 || rl.window <= 0 {
		return true, 0
	}

	now := time.Now().UTC()
	if rl.now != nil {
		now = rl.now()
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.buckets) > 10000 {
		rl.prune(now)
	}

	bucket, ok := rl.buckets[key]
	if !ok || now.Sub(bucket.start) >= rl.window {
		rl.buckets[key] = &rateWindow{start: now, count: 1}
		return true, 0
	}

	if bucket.count >= rl.limit {
		retryAfter := int((rl.window - now.Sub(bucket.start)).Seconds())
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter
	}

	bucket.count++
	return true, 0
}

func (rl *rateLimiter) prune(now time.Time) {
	for key, bucket := range rl.buckets {
		if now.Sub(bucket.start) >= rl.window {
			delete(rl.buckets, key)
		}
	}
}
