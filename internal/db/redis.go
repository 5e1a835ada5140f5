package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidbridge/internal/models"
	"github.com/patrickwarner/openbidbridge/internal/outcome"
)

// ErrNilRedisStore is returned when a counter is used without a Redis connection.
var ErrNilRedisStore = errors.New("redis store not configured")

const dayLayout = "2006-01-02"

// decisionTTL keeps a day's counters around long enough to read yesterday's.
const decisionTTL = 48 * time.Hour

// RedisStore wraps a redis client and context for operations.
type RedisStore struct {
	Client *redis.Client
	Ctx    context.Context
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(addr string) (*RedisStore, error) {
	rs := &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
		Ctx:    context.Background(),
	}

	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(rs.Ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

func decisionKey(slotID, kind string, day time.Time) string {
	return fmt.Sprintf("decision:%s:slot:%s:%s", kind, slotID, day.UTC().Format(dayLayout))
}

// IncrementDecision increments the daily counter for an outcome on a slot.
// A TTL is applied on first set.
func (r *RedisStore) IncrementDecision(ctx context.Context, slotID string, kind outcome.Kind, day time.Time) (int64, error) {
	if r == nil || r.Client == nil {
		return 0, ErrNilRedisStore
	}
	key := decisionKey(slotID, kind.String(), day)
	val, err := r.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if val == 1 {
		r.Client.Expire(ctx, key, decisionTTL)
	}
	return val, nil
}

// RecordDecision counts rec against its slot and day.
func (r *RedisStore) RecordDecision(ctx context.Context, rec models.DecisionRecord) error {
	kind, ok := outcome.ParseKind(rec.Outcome)
	if !ok {
		return fmt.Errorf("unknown outcome %q", rec.Outcome)
	}
	day := rec.Timestamp
	if day.IsZero() {
		day = time.Now()
	}
	_, err := r.IncrementDecision(ctx, rec.SlotID, kind, day)
	return err
}

// DecisionCounts returns the day's counters for a slot keyed by outcome.
// Outcomes never seen that day are omitted.
func (r *RedisStore) DecisionCounts(ctx context.Context, slotID string, day time.Time) (map[string]int64, error) {
	if r == nil || r.Client == nil {
		return nil, ErrNilRedisStore
	}
	kinds := outcome.Kinds()
	keys := make([]string, len(kinds))
	for i, k := range kinds {
		keys[i] = decisionKey(slotID, k.String(), day)
	}

	vals, err := r.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget decision counters: %w", err)
	}

	counts := make(map[string]int64)
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var n int64
		if _, err := fmt.Sscan(s, &n); err != nil {
			return nil, fmt.Errorf("parse counter %s: %w", keys[i], err)
		}
		counts[kinds[i].String()] = n
	}
	return counts, nil
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
