package sipinfra

import (
	"context"
	"time"

	"dialplane/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Locker serializes reconciliations that touch the same named shared resource.
//
// The reconciler's list-then-update sequences are not transactional at the
// platform API, so two concurrent reconciliations can race on the shared
// trunk/rule. Holding a lock per resource name closes that race for deployments
// that configure one; NoopLocker leaves the race as an accepted risk.
type Locker interface {
	Acquire(ctx context.Context, name string) (release func(), err error)
}

type NoopLocker struct{}

func (NoopLocker) Acquire(ctx context.Context, name string) (func(), error) {
	return func() {}, nil
}

// RedisLocker backs the lock with redis SET NX + TTL.
type RedisLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{rdb: rdb, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, name string) (func(), error) {
	lock, err := utils.AcquireResourceLock(ctx, l.rdb, "sipinfra:"+name, l.ttl)
	if err != nil {
		return nil, err
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}, nil
}
