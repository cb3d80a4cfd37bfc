package cache

import (
	"context"
	"time"

	"github.com/dstein131/Main/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// RedisEventStore remembers provider event ids that finished processing.
// Markers expire after the TTL; the unique constraint on
// orders.payment_intent_id remains the durable guard, so an expired or lost
// marker only costs one extra database round trip.
type RedisEventStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisEventStore(rdb *redis.Client, ttl time.Duration) *RedisEventStore {
	return &RedisEventStore{rdb: rdb, ttl: ttl}
}

var _ usecase.ProcessedEventStore = (*RedisEventStore)(nil)

func (s *RedisEventStore) Seen(ctx context.Context, eventID string) (bool, error) {
	_, err := s.rdb.Get(ctx, "webhook:done:"+eventID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisEventStore) MarkProcessed(ctx context.Context, eventID string) error {
	return s.rdb.Set(ctx, "webhook:done:"+eventID, "1", s.ttl).Err()
}
