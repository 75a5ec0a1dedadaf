// SyncLock: the single-flight lock guarding batch sync.
//
// The lock is a plain SET NX EX key. Release is an unconditional DEL rather
// than a compare-and-delete: a lock orphaned by a crashed holder self-expires
// after the TTL, which is the liveness bound. A second sync starting after
// that expiry can double-process some ids, tolerated because durable writes
// skip duplicates.

package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SyncLock provides cross-instance mutual exclusion for the sync job.
type SyncLock struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSyncLock constructs a SyncLock with the given expiry.
func NewSyncLock(rdb *redis.Client, ttl time.Duration) *SyncLock {
	return &SyncLock{rdb: rdb, ttl: ttl}
}

// Acquire attempts to take the lock. It returns true iff this caller now
// holds it.
func (l *SyncLock) Acquire(ctx context.Context) (bool, error) {
	return l.rdb.SetNX(ctx, SyncLockKey, "1", l.ttl).Result()
}

// Release drops the lock unconditionally.
func (l *SyncLock) Release(ctx context.Context) error {
	return l.rdb.Del(ctx, SyncLockKey).Err()
}

// Held reports whether the lock key currently exists (observability only;
// never use this to decide correctness).
func (l *SyncLock) Held(ctx context.Context) (bool, error) {
	n, err := l.rdb.Exists(ctx, SyncLockKey).Result()
	return n == 1, err
}
