// PendingTracker: the global set of entry ids awaiting durable confirmation.
//
// Membership is a derived, best-effort index: presence means "not yet
// confirmed durable"; absence does not guarantee durable presence. Every save
// across every user contends on this one key, which is acceptable because
// SADD/SREM are O(1) per member.

package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// PendingTracker records which entries still need to reach the durable store.
type PendingTracker struct {
	rdb *redis.Client
}

// NewPendingTracker constructs a PendingTracker over the shared client.
func NewPendingTracker(rdb *redis.Client) *PendingTracker {
	return &PendingTracker{rdb: rdb}
}

// Mark adds an entry id to the pending set. Called as part of every save,
// after the cache write succeeded.
func (t *PendingTracker) Mark(ctx context.Context, id string) error {
	return t.rdb.SAdd(ctx, PendingSyncKey, id).Err()
}

// Unmark removes a batch of ids from the pending set: after a confirmed
// durable write, on delete, or when an id proved unrecoverable.
func (t *PendingTracker) Unmark(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return t.rdb.SRem(ctx, PendingSyncKey, args...).Err()
}

// List returns every pending entry id.
func (t *PendingTracker) List(ctx context.Context) ([]string, error) {
	return t.rdb.SMembers(ctx, PendingSyncKey).Result()
}

// Count returns the number of pending ids, for status endpoints and logs.
func (t *PendingTracker) Count(ctx context.Context) (int64, error) {
	return t.rdb.SCard(ctx, PendingSyncKey).Result()
}
