// Package ratelimit implements token bucket rate limiting for slot ad requests.
//
// A bucket allows bursts up to its capacity and refills at a constant rate, so
// a misbehaving SDK cannot flood the host ad server through a single slot.
package ratelimit

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// TokenBucket is a thread-safe token bucket.
//
// Each request consumes one token. When the bucket is empty requests are
// rejected until enough time has passed for tokens to refill.
type TokenBucket struct {
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	clk        clock.Clock
	mu         sync.Mutex
	hitCount   int64
	totalCount int64
}

// NewTokenBucket returns a full bucket using the wall clock.
func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return newTokenBucket(capacity, refillRate, clock.New())
}

func newTokenBucket(capacity, refillRate int, clk clock.Clock) *TokenBucket {
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: float64(refillRate),
		lastRefill: clk.Now(),
		clk:        clk,
	}
}

// Allow consumes one token and reports whether one was available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.totalCount++

	now := tb.clk.Now()
	if elapsed := now.Sub(tb.lastRefill); elapsed > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+elapsed.Seconds()*tb.refillRate)
		tb.lastRefill = now
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}

	tb.hitCount++
	return false
}

// Stats returns the number of rejected requests and the total seen.
func (tb *TokenBucket) Stats() (hits, total int64) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.hitCount, tb.totalCount
}
