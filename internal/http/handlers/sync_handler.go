// Sync HTTP handlers.
//
// This file exposes the monitoring and admin surface of the sync job:
//   - GET  /sync   (pending backlog size + lock status)
//   - POST /sync   (manual trigger, with friendly short-circuits)
//
// These endpoints exist for operators and schedulers; normal request traffic
// never needs them because every save fires a background sync on its own.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyloop/go-chat-store/internal/services"
)

// SyncService defines the sync-management operations consumed by HTTP
// handlers.
type SyncService interface {
	// Status reports the pending backlog and lock state.
	Status(ctx context.Context) (services.SyncStatus, error)
	// TriggerManual runs a sync on demand, short-circuiting when one is
	// already in progress or there is nothing to do.
	TriggerManual(ctx context.Context) services.ManualSyncResult
}

// GetSyncStatus reports how many entries await durable sync and whether a
// sync currently holds the lock.
func (h *Handlers) GetSyncStatus(c *gin.Context) {
	status, err := h.syncSvc.Status(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSyncFailed, "failed to get sync status")
		return
	}
	ok(c, http.StatusOK, status)
}

// TriggerSync runs a manual sync. Lock contention and an empty backlog are
// reported in the body, not as HTTP errors: both are normal outcomes.
func (h *Handlers) TriggerSync(c *gin.Context) {
	ok(c, http.StatusOK, h.syncSvc.TriggerManual(c.Request.Context()))
}
