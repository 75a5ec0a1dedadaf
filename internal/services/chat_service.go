// Package services – ChatService
//
// This file implements the ChatService, the single entry point request
// handlers use to persist and read chat exchanges. It decides cache-vs-
// database precedence per operation: saves land in the cache tier and are
// made durable asynchronously by the sync coordinator; reads prefer the
// cache and fall back to the database, repopulating the cache on the way
// back; stats always come from the database.
//
// Service-level errors (e.g., ErrChatNotFound) are returned for predictable
// cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/studyloop/go-chat-store/internal/cache"
	"github.com/studyloop/go-chat-store/internal/domain"
	"github.com/studyloop/go-chat-store/internal/repo"
)

// defaultHistoryLimit is used when a history read does not specify a limit.
const defaultHistoryLimit = 50

// ScopeOptions selects which history scope an operation targets. The
// precedence mirrors cache key derivation: StudyMaterialID wins over SpaceID.
type ScopeOptions struct {
	SpaceID         string
	StudyMaterialID string
}

// SaveOptions carries the optional scope references for a save.
type SaveOptions struct {
	SpaceID          string
	StudyMaterialID  string
	StudyMaterialIDs []string
}

// HistoryOptions parameterizes a history read.
type HistoryOptions struct {
	SpaceID         string
	StudyMaterialID string
	Limit           int
	Offset          int
}

// ChatService composes the cache tier, the durable tier, and the sync
// coordinator behind one API surface.
type ChatService struct {
	// DB is the GORM handle used for durable reads and stats.
	DB *gorm.DB
	// Cache is the primary write target and first read source.
	Cache *cache.ChatCache
	// Pending tracks ids awaiting durable sync.
	Pending *cache.PendingTracker

	// TriggerSync is fired after every successful save, never awaited.
	// Injected so tests can run the sync synchronously.
	TriggerSync func()
	// DeleteDurable performs the best-effort database delete after a
	// cache-side delete. Injected for the same reason.
	DeleteDurable func(id string)

	// MaxQueryRunes caps accepted queries by rune length (0 disables).
	MaxQueryRunes int

	log zerolog.Logger
}

// NewChatService constructs a ChatService wired to the given stores and sync
// coordinator. The default TriggerSync launches the coordinator on a fresh
// goroutine with a background context and logs its outcome; the default
// DeleteDurable does the same for database deletes.
func NewChatService(db *gorm.DB, c *cache.ChatCache, pending *cache.PendingTracker, sync *SyncService) *ChatService {
	lg := log.With().Str("component", "chat_service").Logger()
	s := &ChatService{
		DB:            db,
		Cache:         c,
		Pending:       pending,
		MaxQueryRunes: 8000,
		log:           lg,
	}
	s.TriggerSync = func() {
		go func() {
			res := sync.SyncPending(context.Background())
			if !res.Success && res.Synced == 0 && res.Failed == 0 {
				// Lost the lock race or had nothing to do under contention.
				lg.Debug().Strs("errors", res.Errors).Msg("background sync skipped")
				return
			}
			if !res.Success {
				lg.Error().Strs("errors", res.Errors).Int("synced", res.Synced).Int("failed", res.Failed).Msg("background sync completed with errors")
			}
		}()
	}
	s.DeleteDurable = func(id string) {
		go func() {
			if err := repo.DeleteChat(context.Background(), db, id); err != nil {
				lg.Error().Err(err).Str("chat_id", id).Msg("background database delete failed")
			}
		}()
	}
	return s
}

// Save persists a new exchange. The entry is written to the cache tier,
// marked pending, and returned immediately; durable persistence happens
// asynchronously. A cache-write failure is fatal to the call since the cache
// is the primary write target.
func (s *ChatService) Save(ctx context.Context, userID, query, response string, opts SaveOptions) (*domain.ChatEntry, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Save",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if s.MaxQueryRunes > 0 && utf8.RuneCountInString(query) > s.MaxQueryRunes {
		return nil, ErrTooLong
	}

	chatType := domain.ChatTypeSpace
	if opts.StudyMaterialID != "" {
		chatType = domain.ChatTypeMaterial
	}

	now := time.Now().UTC()
	entry := &domain.ChatEntry{
		ID:               newChatID(),
		UserID:           userID,
		ChatType:         chatType,
		SpaceID:          opts.SpaceID,
		StudyMaterialID:  opts.StudyMaterialID,
		StudyMaterialIDs: opts.StudyMaterialIDs,
		Query:            query,
		Response:         response,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.Cache.Put(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.Pending.Mark(ctx, entry.ID); err != nil {
		// The entry is readable from cache; it just won't reach the database
		// until a later save or the background drain re-marks nothing. Log
		// and keep going, matching the best-effort nature of the index.
		s.log.Error().Err(err).Str("chat_id", entry.ID).Msg("failed to mark entry pending")
	}

	if s.TriggerSync != nil {
		s.TriggerSync()
	}
	return entry, nil
}

// GetOne returns a single entry, preferring the cache. On a cache miss it
// reads the database and, on a hit, repopulates the cache before returning so
// subsequent reads are fast. ErrChatNotFound is returned when the entry
// exists in neither tier.
func (s *ChatService) GetOne(ctx context.Context, id string) (*domain.ChatEntry, error) {
	entry, err := s.Cache.GetOne(ctx, id)
	if err == nil && entry != nil {
		return entry, nil
	}

	entry, err = repo.GetChat(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}

	// Read-through: cache failures must not fail a read that found data.
	if err := s.Cache.Put(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("chat_id", id).Msg("failed to repopulate cache")
	}
	return entry, nil
}

// GetHistory returns a page of a user's exchanges within a scope, newest
// first. The first page is served from the cache list when warm; a cold list
// falls back to the database and repopulates the cache. Deeper pages always
// come from the database, since the capped cache list cannot serve arbitrary
// offsets.
func (s *ChatService) GetHistory(ctx context.Context, userID string, opts HistoryOptions) ([]domain.ChatEntry, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "GetHistory",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("limit", opts.Limit),
			attribute.Int("offset", opts.Offset),
		),
	)
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if opts.Offset > 0 {
		return repo.ListChats(ctx, s.DB, userID, opts.SpaceID, opts.StudyMaterialID, limit, opts.Offset)
	}

	listKey := cache.ListKey(userID, opts.SpaceID, opts.StudyMaterialID)
	ids, err := s.Cache.ListIDs(ctx, listKey, limit)
	if err != nil {
		s.log.Warn().Err(err).Str("list_key", listKey).Msg("cache list read failed, falling back to database")
		ids = nil
	}

	if len(ids) > 0 {
		entries, err := s.Cache.GetMany(ctx, ids)
		if err != nil {
			s.log.Warn().Err(err).Str("list_key", listKey).Msg("cache batch read failed, falling back to database")
		} else if len(entries) > 0 {
			sortByCreatedDesc(entries)
			return entries, nil
		}
	}

	// Cold cache (or everything expired): pull the first page from the
	// database and write it back so the next read is cache-served.
	entries, err := repo.ListChats(ctx, s.DB, userID, opts.SpaceID, opts.StudyMaterialID, limit, 0)
	if err != nil {
		return nil, err
	}
	// Oldest first so LPUSH leaves the newest id at the head of the list.
	for i := len(entries) - 1; i >= 0; i-- {
		if err := s.Cache.Put(ctx, &entries[i]); err != nil {
			s.log.Warn().Err(err).Str("chat_id", entries[i].ID).Msg("failed to repopulate cache")
			break
		}
	}
	return entries, nil
}

// DeleteOne removes an entry from the cache tier (entry key plus scope-list
// reference) and the pending set synchronously, then fires a best-effort
// database delete that never blocks or fails the caller.
func (s *ChatService) DeleteOne(ctx context.Context, id, userID string, opts ScopeOptions) error {
	listKey := cache.ListKey(userID, opts.SpaceID, opts.StudyMaterialID)
	if err := s.Cache.RemoveOne(ctx, id, listKey); err != nil {
		return err
	}
	if err := s.Pending.Unmark(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("chat_id", id).Msg("failed to unmark deleted entry")
	}
	if s.DeleteDurable != nil {
		s.DeleteDurable(id)
	}
	return nil
}

// ClearHistory drops a whole scope from the cache tier: every referenced
// entry and the scope list itself. Durable rows are left in place.
func (s *ChatService) ClearHistory(ctx context.Context, userID string, opts ScopeOptions) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	return s.Cache.ClearScope(ctx, cache.ListKey(userID, opts.SpaceID, opts.StudyMaterialID))
}

// Stats returns aggregate counts for a user within an optional scope,
// computed from the database: the capped cache lists cannot answer counts
// over the full unbounded history.
func (s *ChatService) Stats(ctx context.Context, userID string, opts ScopeOptions) (repo.ChatStats, error) {
	if strings.TrimSpace(userID) == "" {
		return repo.ChatStats{}, ErrEmptyUserID
	}
	return repo.GetChatStats(ctx, s.DB, userID, opts.SpaceID, opts.StudyMaterialID)
}

// sortByCreatedDesc orders entries newest first. Cache batch reads preserve
// no particular order, so history responses are always re-sorted.
func sortByCreatedDesc(entries []domain.ChatEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}

// chatIDAlphabet is the base36 alphabet used for the random id suffix.
const chatIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newChatID generates a chat id of the form chat_<unixMillis>_<9 random
// base36 chars>. The format is opaque to callers; the timestamp prefix keeps
// ids roughly sortable in debugging output.
func newChatID() string {
	suffix := make([]byte, 9)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(chatIDAlphabet))))
		if err != nil {
			// crypto/rand failing means the process is in a bad way; fall
			// back to a time-derived digit rather than panicking.
			suffix[i] = chatIDAlphabet[time.Now().UnixNano()%36]
			continue
		}
		suffix[i] = chatIDAlphabet[n.Int64()]
	}
	return fmt.Sprintf("chat_%d_%s", time.Now().UnixMilli(), suffix)
}
