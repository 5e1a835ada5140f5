package ratelimit

import (
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/patrickwarner/openbidbridge/internal/observability"
)

// Config holds the configuration for rate limiting.
type Config struct {
	Capacity   int  // burst allowance per slot
	RefillRate int  // tokens added per second
	Enabled    bool // false lets every request through
}

// SlotLimiter keeps one token bucket per slot, created lazily on first use.
type SlotLimiter struct {
	buckets map[string]*TokenBucket
	mu      sync.RWMutex
	config  Config
	metrics observability.MetricsRegistry
	clk     clock.Clock
}

// NewSlotLimiter creates a limiter backed by the wall clock.
func NewSlotLimiter(config Config, metrics observability.MetricsRegistry) *SlotLimiter {
	return NewSlotLimiterWithClock(config, metrics, clock.New())
}

// NewSlotLimiterWithClock is NewSlotLimiter with an explicit time source.
func NewSlotLimiterWithClock(config Config, metrics observability.MetricsRegistry, clk clock.Clock) *SlotLimiter {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &SlotLimiter{
		buckets: make(map[string]*TokenBucket),
		config:  config,
		metrics: metrics,
		clk:     clk,
	}
}

// Allow reports whether an ad request for slotID may proceed.
// A nil or disabled limiter allows everything.
func (l *SlotLimiter) Allow(slotID string) bool {
	if l == nil || !l.config.Enabled {
		return true
	}

	l.metrics.IncrementRateLimitRequests(slotID)

	l.mu.RLock()
	bucket, ok := l.buckets[slotID]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		bucket, ok = l.buckets[slotID]
		if !ok {
			bucket = newTokenBucket(l.config.Capacity, l.config.RefillRate, l.clk)
			l.buckets[slotID] = bucket
		}
		l.mu.Unlock()
	}

	allowed := bucket.Allow()
	if !allowed {
		l.metrics.IncrementRateLimitHits(slotID)
	}
	return allowed
}

// Stats returns a snapshot of per-slot limiter activity.
func (l *SlotLimiter) Stats() map[string]Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]Stats, len(l.buckets))
	for id, bucket := range l.buckets {
		hits, total := bucket.Stats()
		rate := 0.0
		if total > 0 {
			rate = float64(hits) / float64(total)
		}
		out[id] = Stats{SlotID: id, Hits: hits, Total: total, HitRate: rate}
	}
	return out
}

// Stats describes limiter activity for one slot.
type Stats struct {
	SlotID  string  `json:"slot_id"`
	Hits    int64   `json:"hits"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hit_rate"`
}

func (s Stats) String() string {
	return fmt.Sprintf("slot %s: %d/%d hits (%.2f%%)", s.SlotID, s.Hits, s.Total, s.HitRate*100)
}
