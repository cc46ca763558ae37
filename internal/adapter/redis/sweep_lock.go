package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const sweepLockKey = "insights:sweep:leader"

// releaseScript deletes the lock only if this instance still holds it.
var releaseScript = goredis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// SweepLock implements domain.SweepLock with SETNX and a TTL slightly shorter
// than the sweep interval, so the lease lapses before the next tick and any
// instance may take the following sweep.
type SweepLock struct {
	rdb        *goredis.Client
	instanceID string
	ttl        time.Duration
}

// NewSweepLock creates the lock. instanceID should be unique per instance (e.g., hostname-PID).
func NewSweepLock(rdb *goredis.Client, instanceID string, sweepInterval time.Duration) *SweepLock {
	return &SweepLock{
		rdb:        rdb,
		instanceID: instanceID,
		ttl:        sweepInterval * 9 / 10,
	}
}

// TryAcquire returns true if this instance owns the current sweep.
func (l *SweepLock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, sweepLockKey, l.instanceID, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	return ok, nil
}

// Release drops the lease early. Called on graceful shutdown.
func (l *SweepLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{sweepLockKey}, l.instanceID).Err(); err != nil {
		return fmt.Errorf("failed to release sweep lock: %w", err)
	}
	return nil
}
