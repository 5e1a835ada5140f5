package ratelimit

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"

	"github.com/patrickwarner/openbidbridge/internal/observability"
)

func TestTokenBucket_Allow(t *testing.T) {
	bucket := newTokenBucket(5, 1, clock.NewMock())

	for i := 0; i < 5; i++ {
		assert.True(t, bucket.Allow(), "request %d", i+1)
	}
	assert.False(t, bucket.Allow())

	hits, total := bucket.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(6), total)
}

func TestTokenBucket_Refill(t *testing.T) {
	mock := clock.NewMock()
	bucket := newTokenBucket(2, 10, mock)

	assert.True(t, bucket.Allow())
	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow())

	mock.Add(50 * time.Millisecond)
	assert.False(t, bucket.Allow(), "half a token is not enough")

	mock.Add(50 * time.Millisecond)
	assert.True(t, bucket.Allow())

	mock.Add(time.Hour)
	assert.True(t, bucket.Allow())
	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow(), "refill is capped at capacity")
}

func TestSlotLimiter_PerSlotBuckets(t *testing.T) {
	metrics := observability.NewMockMetricsRegistry()
	l := NewSlotLimiterWithClock(Config{Capacity: 1, RefillRate: 1, Enabled: true}, metrics, clock.NewMock())

	assert.True(t, l.Allow("home"))
	assert.False(t, l.Allow("home"))
	assert.True(t, l.Allow("launch"))

	assert.Equal(t, 2, metrics.Count("IncrementRateLimitRequests", "home"))
	assert.Equal(t, 1, metrics.Count("IncrementRateLimitHits", "home"))
	assert.Equal(t, 0, metrics.Count("IncrementRateLimitHits", "launch"))

	stats := l.Stats()
	assert.Equal(t, Stats{SlotID: "home", Hits: 1, Total: 2, HitRate: 0.5}, stats["home"])
	assert.Equal(t, "slot home: 1/2 hits (50.00%)", stats["home"].String())
}

func TestSlotLimiter_Disabled(t *testing.T) {
	metrics := observability.NewMockMetricsRegistry()
	l := NewSlotLimiter(Config{Capacity: 0, Enabled: false}, metrics)
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("home"))
	}
	assert.Equal(t, 0, metrics.Count("IncrementRateLimitRequests", "home"))

	var nilLimiter *SlotLimiter
	assert.True(t, nilLimiter.Allow("home"))
}
