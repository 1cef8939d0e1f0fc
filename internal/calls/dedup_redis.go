package calls

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupKeyPrefix = "dedup:event:"

// RedisDedupSet implements the idempotency gate on redis.
//
// SET NX is the atomic check-and-record: of any number of concurrent
// deliveries of one event id, exactly one observes first-seen. The TTL bounds
// the set; it must be configured to outlive the platform's webhook redelivery
// window.
type RedisDedupSet struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDedupSet(rdb *redis.Client, ttl time.Duration) (*RedisDedupSet, error) {
	if rdb == nil {
		return nil, fmt.Errorf("calls: redis client is nil")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("calls: dedup ttl must be > 0")
	}
	return &RedisDedupSet{rdb: rdb, ttl: ttl}, nil
}

func (d *RedisDedupSet) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, fmt.Errorf("calls: event id is required")
	}
	ok, err := d.rdb.SetNX(ctx, dedupKeyPrefix+eventID, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("calls: dedup check failed: %w", err)
	}
	return ok, nil
}
