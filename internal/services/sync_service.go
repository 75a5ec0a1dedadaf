// Package services – SyncService
//
// This file implements the sync coordinator: it drains the pending-sync set
// in bounded batches, resolves each id to its full record from the cache
// tier, bulk-writes the resolved records to the database with duplicate
// skipping, and strips confirmed or unrecoverable ids from the pending set.
//
// The whole run executes under a distributed single-flight lock, so at most
// one process instance flushes the backlog at a time. Losing the lock race is
// a normal outcome, not an error: callers get an "in progress" result and
// must not retry in a tight loop.
package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/studyloop/go-chat-store/internal/cache"
	"github.com/studyloop/go-chat-store/internal/domain"
	"github.com/studyloop/go-chat-store/internal/observability"
	"github.com/studyloop/go-chat-store/internal/repo"
)

// SyncResult reports the outcome of one sync run.
type SyncResult struct {
	// Success is true when the run completed without errors. A run that lost
	// the lock race reports Success=false with an explanatory error string.
	Success bool `json:"success"`
	// Synced counts entries confirmed written to the database.
	Synced int `json:"synced"`
	// Failed counts entries that could not be synced this run: cache-expired
	// ids (dropped permanently) plus entries whose bulk write failed (they
	// stay pending for the next run).
	Failed int `json:"failed"`
	// Errors collects human-readable failure descriptions.
	Errors []string `json:"errors,omitempty"`
}

// SyncStatus is a point-in-time snapshot for monitoring.
type SyncStatus struct {
	PendingCount int64 `json:"pendingCount"`
	LockHeld     bool  `json:"lockHeld"`
}

// ManualSyncResult wraps a SyncResult with a user-facing message for the
// manual trigger endpoint.
type ManualSyncResult struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Result  *SyncResult `json:"result,omitempty"`
}

// SyncService moves pending chat entries from the cache tier to the durable
// tier under single-flight protection. It is safe for concurrent use; the
// lock serializes actual work across all instances.
type SyncService struct {
	// DB is the GORM handle for the durable tier.
	DB *gorm.DB
	// Cache resolves pending ids to full entries.
	Cache *cache.ChatCache
	// Pending tracks ids awaiting durable confirmation.
	Pending *cache.PendingTracker
	// Lock is the cross-instance mutual exclusion for sync runs.
	Lock *cache.SyncLock

	// BatchSize bounds each pipelined cache fetch.
	BatchSize int

	log zerolog.Logger
}

// NewSyncService constructs a SyncService with the given batch size
// (values < 1 are coerced to 50).
func NewSyncService(db *gorm.DB, c *cache.ChatCache, pending *cache.PendingTracker, lock *cache.SyncLock, batchSize int) *SyncService {
	if batchSize < 1 {
		batchSize = 50
	}
	return &SyncService{
		DB:        db,
		Cache:     c,
		Pending:   pending,
		Lock:      lock,
		BatchSize: batchSize,
		log:       log.With().Str("component", "chat_sync").Logger(),
	}
}

// SyncPending flushes the pending set to the database.
//
// Algorithm:
//  1. Acquire the lock; on contention return immediately ("in progress").
//  2. Read the pending ids; empty set is a successful no-op.
//  3. Resolve ids in batches via pipelined cache fetches. Ids that resolve
//     to nothing are unrecoverable (the cache entry expired before sync).
//  4. Bulk-write every resolved entry in one duplicate-skipping insert. On
//     success unmark them; on failure leave them pending for the next run.
//  5. Strip unrecoverable ids from the pending set regardless of step 4.
//  6. Release the lock.
func (s *SyncService) SyncPending(ctx context.Context) SyncResult {
	var result SyncResult

	acquired, err := s.Lock.Acquire(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("acquire sync lock: %v", err))
		return result
	}
	if !acquired {
		result.Errors = append(result.Errors, "could not acquire sync lock - another sync might be in progress")
		return result
	}
	defer func() {
		if err := s.Lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Error().Err(err).Msg("failed to release sync lock")
		}
	}()

	pendingIDs, err := s.Pending.List(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list pending ids: %v", err))
		return result
	}
	if len(pendingIDs) == 0 {
		result.Success = true
		return result
	}

	s.log.Info().Int("pending", len(pendingIDs)).Msg("starting chat sync")

	var (
		entries   []domain.ChatEntry
		failedIDs []string
	)
	for start := 0; start < len(pendingIDs); start += s.BatchSize {
		end := min(start+s.BatchSize, len(pendingIDs))
		batch := pendingIDs[start:end]

		resolved, err := s.Cache.GetMany(ctx, batch)
		if err != nil {
			// Infrastructure failure: these ids may still be resolvable
			// later, so they stay pending and are not classified expired.
			result.Errors = append(result.Errors, fmt.Sprintf("fetch batch from cache: %v", err))
			continue
		}

		seen := make(map[string]bool, len(resolved))
		for _, e := range resolved {
			seen[e.ID] = true
		}
		for _, id := range batch {
			if !seen[id] {
				failedIDs = append(failedIDs, id)
			}
		}
		entries = append(entries, resolved...)
	}

	// One bulk insert for the whole run, not per batch.
	if len(entries) > 0 {
		if err := repo.CreateChats(ctx, s.DB, entries); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("database save failed: %v", err))
			result.Failed += len(entries)
		} else {
			syncedIDs := make([]string, len(entries))
			for i, e := range entries {
				syncedIDs[i] = e.ID
			}
			if err := s.Pending.Unmark(ctx, syncedIDs...); err != nil {
				// Already durable; duplicate skipping makes the re-run a no-op.
				s.log.Warn().Err(err).Msg("failed to unmark synced ids, they will be re-synced")
			}
			result.Synced = len(entries)
			s.log.Info().Int("synced", result.Synced).Msg("chat sync completed")
		}
	}

	// Expired ids can never be resolved again, drop them no matter what
	// happened to the bulk write.
	if len(failedIDs) > 0 {
		result.Failed += len(failedIDs)
		result.Errors = append(result.Errors, fmt.Sprintf("failed to fetch %d entries from cache", len(failedIDs)))
		if err := s.Pending.Unmark(ctx, failedIDs...); err != nil {
			s.log.Error().Err(err).Msg("failed to strip expired ids from pending set")
		}
	}

	result.Success = len(result.Errors) == 0
	observability.ObserveSyncRun(result.Synced, result.Success)
	return result
}

// Status reports the pending backlog size and whether a sync currently holds
// the lock.
func (s *SyncService) Status(ctx context.Context) (SyncStatus, error) {
	count, err := s.Pending.Count(ctx)
	if err != nil {
		return SyncStatus{}, err
	}
	held, err := s.Lock.Held(ctx)
	if err != nil {
		return SyncStatus{}, err
	}
	return SyncStatus{PendingCount: count, LockHeld: held}, nil
}

// TriggerManual runs a sync on demand, first short-circuiting with a friendly
// message when a sync is already in progress or there is nothing to do. The
// pre-checks are a UX optimization only; the lock inside SyncPending remains
// the correctness mechanism.
func (s *SyncService) TriggerManual(ctx context.Context) ManualSyncResult {
	status, err := s.Status(ctx)
	if err != nil {
		return ManualSyncResult{Message: fmt.Sprintf("manual sync failed: %v", err)}
	}
	if status.LockHeld {
		return ManualSyncResult{Message: "sync is already in progress"}
	}
	if status.PendingCount == 0 {
		return ManualSyncResult{Success: true, Message: "no pending chats to sync"}
	}

	result := s.SyncPending(ctx)
	msg := fmt.Sprintf("successfully synced %d chats", result.Synced)
	if !result.Success {
		msg = "sync failed: " + joinErrors(result.Errors)
	}
	return ManualSyncResult{Success: result.Success, Message: msg, Result: &result}
}

func joinErrors(errs []string) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += ", "
		}
		out += e
	}
	return out
}
