package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfig controls redis client behavior.
// Keep it config-driven; defaults should be safe and conservative.
type RedisConfig struct {
	Addr string

	// Basic timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Pool tuning
	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	out := c
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 20
	}
	if out.MinIdleConns < 0 {
		out.MinIdleConns = 0
	}
	if out.PoolTimeout <= 0 {
		out.PoolTimeout = 4 * time.Second
	}
	if out.ConnMaxIdleTime <= 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	if out.ConnMaxLifetime <= 0 {
		out.ConnMaxLifetime = 30 * time.Minute
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// OpenRedis initializes a Redis client and validates connectivity via PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

var lockReleaseScript = redis.NewScript(`
-- KEYS[1] = lock key
-- ARGV[1] = holder token
-- Delete only if we still hold the lock.
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// ResourceLock serializes mutations of a shared named resource across
// processes. It is advisory: callers that skip the lock still work, they just
// reintroduce the read-modify-write race the lock exists to close.
//
// Safety properties:
// - Acquire uses SET NX with TTL, so a crashed holder cannot wedge the key.
// - Release is compare-and-delete via Lua; an expired holder cannot release
//   a lock someone else has since acquired.
type ResourceLock struct {
	rdb   *redis.Client
	key   string
	token string
	ttl   time.Duration
}

// AcquireResourceLock blocks until the named lock is held or ctx is done.
func AcquireResourceLock(ctx context.Context, rdb *redis.Client, name string, ttl time.Duration) (*ResourceLock, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if name == "" {
		return nil, fmt.Errorf("lock name is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be > 0")
	}

	l := &ResourceLock{
		rdb:   rdb,
		key:   "lock:" + name,
		token: uuid.NewString(),
		ttl:   ttl,
	}

	for {
		ok, err := rdb.SetNX(ctx, l.key, l.token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return l, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Release frees the lock if this holder still owns it.
func (l *ResourceLock) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	_, err := lockReleaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Result()
	return err
}
