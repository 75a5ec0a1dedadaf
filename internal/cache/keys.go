// Package cache implements the Redis tier of the two-tier chat persistence
// engine: entry storage with TTL, per-scope history lists, the pending-sync
// set, and the distributed sync lock.
//
// Key layout (shared with the durable sync job and stable across releases):
//
//	chat:entry:<id>                      full JSON-serialized entry, TTL-bound
//	chat:material:<userId>:<materialId>  history list scoped to one material
//	chat:space:<userId>:<spaceId>        history list scoped to a space
//	chat:user:<userId>                   history list scoped to the user alone
//	chat:pending_sync                    set of entry ids awaiting durable sync
//	chat:sync_lock                       mutual-exclusion key for the sync job
package cache

const (
	entryKeyPrefix = "chat:entry:"

	// PendingSyncKey is the global set of entry ids not yet confirmed in the
	// durable store. It is shared by every process instance.
	PendingSyncKey = "chat:pending_sync"

	// SyncLockKey is the single-flight lock key guarding batch sync.
	SyncLockKey = "chat:sync_lock"
)

// EntryKey returns the cache key holding the full record for an entry id.
func EntryKey(id string) string { return entryKeyPrefix + id }

// ListKey derives the scope-list key for a user. Precedence is material >
// space > user: when a material id is present the list is scoped to that
// single material even if a space id is also given, so a material-level
// exchange is invisible to a space-level history read and vice versa.
func ListKey(userID, spaceID, studyMaterialID string) string {
	if studyMaterialID != "" {
		return "chat:material:" + userID + ":" + studyMaterialID
	}
	if spaceID != "" {
		return "chat:space:" + userID + ":" + spaceID
	}
	return "chat:user:" + userID
}
