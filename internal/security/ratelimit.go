package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a request exceeds the rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// Rate limit kinds.
const (
	// KindToolCall counts every MCP tool invocation.
	KindToolCall = "tool_call"
	// KindWrite counts tool invocations that modify Odoo data.
	KindWrite = "write"
)

// RateLimitConfig holds configurable rate limits. Zero values use the
// defaults.
type RateLimitConfig struct {
	ToolCallsPerMin int
	WritesPerMin    int
}

func rateLimitConfigDefaults() RateLimitConfig {
	return RateLimitConfig{
		ToolCallsPerMin: 600,
		WritesPerMin:    120,
	}
}

// RateLimiter implements sliding window rate limiting.
// Each bucket tracks timestamps of recent events within its window.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	config  RateLimitConfig
	now     func() time.Time
}

type bucket struct {
	window time.Duration
	limit  int
	events []time.Time
}

// NewRateLimiter creates a rate limiter with the given config.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	defaults := rateLimitConfigDefaults()
	if cfg.ToolCallsPerMin <= 0 {
		cfg.ToolCallsPerMin = defaults.ToolCallsPerMin
	}
	if cfg.WritesPerMin <= 0 {
		cfg.WritesPerMin = defaults.WritesPerMin
	}

	return &RateLimiter{
		config: cfg,
		now:    time.Now,
		buckets: map[string]*bucket{
			KindToolCall: {window: time.Minute, limit: cfg.ToolCallsPerMin},
			KindWrite:    {window: time.Minute, limit: cfg.WritesPerMin},
		},
	}
}

// Allow records an event of the given kind and reports ErrRateLimited when
// the bucket is full. Unknown kinds are never limited.
func (rl *RateLimiter) Allow(kind string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[kind]
	if !ok {
		return nil
	}

	now := rl.now()
	b.evict(now)

	if len(b.events) >= b.limit {
		return ErrRateLimited
	}

	b.events = append(b.events, now)
	return nil
}

// Remaining returns how many events of kind are still allowed in the
// current window, or -1 for an unknown kind.
func (rl *RateLimiter) Remaining(kind string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[kind]
	if !ok {
		return -1
	}
	b.evict(rl.now())
	return b.limit - len(b.events)
}

// Config returns the effective limits.
func (rl *RateLimiter) Config() RateLimitConfig {
	return rl.config
}

// evict removes events outside the sliding window.
func (b *bucket) evict(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.events) && b.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.events = b.events[i:]
	}
}
