// Chat HTTP handlers.
//
// This file exposes REST endpoints for chat exchanges:
//   - POST   /chats            (save a query/response exchange)
//   - GET    /chats            (history, scope-filtered, paginated)
//   - GET    /chats/stats      (aggregate counts)
//   - GET    /chats/{id}       (single entry)
//   - DELETE /chats/{id}       (delete one entry)
//   - DELETE /chats            (clear a scope's cached history)
//
// Handlers are transport-thin: they validate input, call the persistence
// facade, and translate results into HTTP responses. Answer generation is not
// done here - clients submit the already-generated response alongside the
// query, and this API only persists the exchange.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/studyloop/go-chat-store/internal/domain"
	"github.com/studyloop/go-chat-store/internal/repo"
	"github.com/studyloop/go-chat-store/internal/services"
	"github.com/studyloop/go-chat-store/internal/utils"
)

//
// Service contracts (context-aware)
//

// ChatService defines the persistence facade operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ChatService interface {
	// Save persists a new exchange and returns it immediately; durable
	// persistence happens asynchronously.
	Save(ctx context.Context, userID, query, response string, opts services.SaveOptions) (*domain.ChatEntry, error)
	// GetOne returns a single entry from whichever tier has it.
	GetOne(ctx context.Context, id string) (*domain.ChatEntry, error)
	// GetHistory returns a page of a user's exchanges, newest first.
	GetHistory(ctx context.Context, userID string, opts services.HistoryOptions) ([]domain.ChatEntry, error)
	// DeleteOne removes an entry from the cache tier and schedules the
	// database delete.
	DeleteOne(ctx context.Context, id, userID string, opts services.ScopeOptions) error
	// ClearHistory drops a scope's cached history.
	ClearHistory(ctx context.Context, userID string, opts services.ScopeOptions) error
	// Stats returns aggregate counts from the durable tier.
	Stats(ctx context.Context, userID string, opts services.ScopeOptions) (repo.ChatStats, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for chat exchanges and sync management.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	chatSvc ChatService
	syncSvc SyncService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(chatSvc ChatService, syncSvc SyncService) *Handlers {
	return &Handlers{chatSvc: chatSvc, syncSvc: syncSvc}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it).
// Authentication itself is out of scope for this service.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return ""
}

// scopeFromQuery reads the optional scope parameters shared by several
// endpoints. Parameter names follow the original client contract (camelCase).
func scopeFromQuery(c *gin.Context) services.ScopeOptions {
	return services.ScopeOptions{
		SpaceID:         strings.TrimSpace(c.Query("spaceId")),
		StudyMaterialID: strings.TrimSpace(c.Query("studyMaterialId")),
	}
}

//
// DTOs
//

// SaveChatRequest is the JSON payload for persisting an exchange.
type SaveChatRequest struct {
	// Query is the user's question (required).
	Query string `json:"query" binding:"required"`
	// Response is the generated answer produced upstream.
	Response string `json:"response"`
	// SpaceID optionally scopes the exchange to a space.
	SpaceID string `json:"spaceId"`
	// StudyMaterialID optionally scopes the exchange to a single material
	// (takes precedence over SpaceID).
	StudyMaterialID string `json:"studyMaterialId"`
	// StudyMaterialIDs lists the materials consulted for a space-level
	// answer; metadata only, never used for scoping.
	StudyMaterialIDs []string `json:"studyMaterialIds"`
}

// HistoryResponse wraps a page of exchanges.
type HistoryResponse struct {
	Chats []domain.ChatEntry `json:"chats"`
	Count int                `json:"count"`
}

//
// Endpoints
//

// SaveChat persists a new exchange for the authenticated user.
//
// Returns 201 with the stored entry. The entry is immediately readable; its
// database copy materializes asynchronously.
func (h *Handlers) SaveChat(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing user identity")
		return
	}

	var req SaveChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	entry, err := h.chatSvc.Save(c.Request.Context(), uid, req.Query, req.Response, services.SaveOptions{
		SpaceID:          req.SpaceID,
		StudyMaterialID:  req.StudyMaterialID,
		StudyMaterialIDs: req.StudyMaterialIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyQuery), errors.Is(err, services.ErrTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSaveFailed, "failed to save chat")
		}
		return
	}
	ok(c, http.StatusCreated, entry)
}

// GetChat returns a single exchange by id.
func (h *Handlers) GetChat(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing chat id")
		return
	}

	entry, err := h.chatSvc.GetOne(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrChatNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat entry not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load chat")
		return
	}
	ok(c, http.StatusOK, entry)
}

// GetHistory returns a page of the user's exchanges within the requested
// scope (studyMaterialId > spaceId > user), newest first.
func (h *Handlers) GetHistory(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing user identity")
		return
	}

	scope := scopeFromQuery(c)
	entries, err := h.chatSvc.GetHistory(c.Request.Context(), uid, services.HistoryOptions{
		SpaceID:         scope.SpaceID,
		StudyMaterialID: scope.StudyMaterialID,
		Limit:           utils.ClampLimit(utils.AtoiDefault(c.Query("limit"), 50), 50, 100),
		Offset:          utils.AtoiDefault(c.Query("offset"), 0),
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeHistoryFailed, "failed to load chat history")
		return
	}
	if entries == nil {
		entries = []domain.ChatEntry{}
	}
	ok(c, http.StatusOK, HistoryResponse{Chats: entries, Count: len(entries)})
}

// DeleteChat removes one exchange. The cache-side removal is synchronous;
// the database delete is best-effort and happens in the background.
func (h *Handlers) DeleteChat(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing user identity")
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing chat id")
		return
	}

	if err := h.chatSvc.DeleteOne(c.Request.Context(), id, uid, scopeFromQuery(c)); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, "failed to delete chat")
		return
	}
	noContent(c)
}

// ClearHistory drops the cached history for one scope. Durable rows are
// retained.
func (h *Handlers) ClearHistory(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing user identity")
		return
	}
	if err := h.chatSvc.ClearHistory(c.Request.Context(), uid, scopeFromQuery(c)); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, "failed to clear chat history")
		return
	}
	noContent(c)
}

// GetStats returns total and today's exchange counts for the user within an
// optional scope. Always computed from the database.
func (h *Handlers) GetStats(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing user identity")
		return
	}
	stats, err := h.chatSvc.Stats(c.Request.Context(), uid, scopeFromQuery(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, "failed to load chat statistics")
		return
	}
	ok(c, http.StatusOK, stats)
}
