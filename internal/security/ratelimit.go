package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned by RateLimiter.Allow once a key is over its
// limit.
var ErrRateLimited = errors.New("security: rate limit exceeded")

// RateLimiter is a sliding-window limiter with one window per key, such as a
// remote address. Safe for concurrent use.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events map[string][]time.Time
	now    func() time.Time
}

// NewRateLimiter allows limit events per key within window. A limit of zero
// or less disables limiting.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: window,
		events: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records an event for key, or returns ErrRateLimited without
// recording it.
func (rl *RateLimiter) Allow(key string) error {
	if rl.limit <= 0 {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := rl.evict(key, now)
	if len(recent) >= rl.limit {
		return ErrRateLimited
	}
	rl.events[key] = append(recent, now)
	return nil
}

// evict drops the events of key older than the window. Keys left with no
// events are removed from the map.
func (rl *RateLimiter) evict(key string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	events := rl.events[key]
	i := 0
	for i < len(events) && !events[i].After(cutoff) {
		i++
	}
	events = events[i:]
	if len(events) == 0 {
		delete(rl.events, key)
	}
	return events
}
