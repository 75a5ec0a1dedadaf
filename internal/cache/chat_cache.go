// ChatCache: entry and scope-list operations.
//
// Write semantics: Put is the primary write target of a save, so its failures
// propagate to the caller. Read semantics are best-effort: a miss, a corrupt
// payload, or an unreachable Redis all degrade to "not here", leaving the
// caller to fall back to the durable tier.

package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/studyloop/go-chat-store/internal/domain"
)

// ChatCache stores chat entries and per-scope history lists in Redis.
// It is safe for concurrent use.
type ChatCache struct {
	rdb     *redis.Client
	ttl     time.Duration
	listMax int
	log     zerolog.Logger
}

// NewChatCache constructs a ChatCache. ttl bounds both entry keys and scope
// lists; listMax caps each scope list (older ids are trimmed away).
func NewChatCache(rdb *redis.Client, ttl time.Duration, listMax int) *ChatCache {
	if listMax < 1 {
		listMax = 1
	}
	return &ChatCache{
		rdb:     rdb,
		ttl:     ttl,
		listMax: listMax,
		log:     log.With().Str("component", "chat_cache").Logger(),
	}
}

// Put serializes the entry, stores it under its entry key with TTL, pushes
// its id onto the scope list, trims the list to the cap, and refreshes the
// list TTL. Any failure is returned: if the cache write failed, the save has
// not happened.
func (c *ChatCache) Put(ctx context.Context, entry *domain.ChatEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	listKey := ListKey(entry.UserID, entry.SpaceID, entry.StudyMaterialID)

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, EntryKey(entry.ID), raw, c.ttl)
	pipe.LPush(ctx, listKey, entry.ID)
	pipe.LTrim(ctx, listKey, 0, int64(c.listMax-1))
	pipe.Expire(ctx, listKey, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return nil
}

// GetOne fetches and deserializes a single entry. It returns (nil, nil) on a
// miss, a corrupt payload, or a cache failure; corruption and failures are
// logged, never surfaced.
func (c *ChatCache) GetOne(ctx context.Context, id string) (*domain.ChatEntry, error) {
	raw, err := c.rdb.Get(ctx, EntryKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("chat_id", id).Msg("cache read failed, treating as miss")
		}
		return nil, nil
	}
	var entry domain.ChatEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.log.Error().Err(err).Str("chat_id", id).Msg("corrupt cache payload, treating as miss")
		return nil, nil
	}
	return &entry, nil
}

// GetMany resolves a batch of ids with a single pipelined fetch, skipping
// misses and parse failures. No particular order is guaranteed; callers sort
// by CreatedAt.
func (c *ChatCache) GetMany(ctx context.Context, ids []string) ([]domain.ChatEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, EntryKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	entries := make([]domain.ChatEntry, 0, len(ids))
	for i, cmd := range cmds {
		raw, err := cmd.Bytes()
		if err != nil {
			continue // miss or per-key failure
		}
		var entry domain.ChatEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			c.log.Error().Err(err).Str("chat_id", ids[i]).Msg("corrupt cache payload, skipping")
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ListIDs returns up to limit ids from a scope list, most recent first.
func (c *ChatCache) ListIDs(ctx context.Context, listKey string, limit int) ([]string, error) {
	if limit < 1 {
		return nil, nil
	}
	return c.rdb.LRange(ctx, listKey, 0, int64(limit-1)).Result()
}

// RemoveOne deletes an entry key and strips all occurrences of its id from
// the scope list.
func (c *ChatCache) RemoveOne(ctx context.Context, id, listKey string) error {
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, EntryKey(id))
	pipe.LRem(ctx, listKey, 0, id)
	_, err := pipe.Exec(ctx)
	return err
}

// ClearScope drops every entry referenced by a scope list, then the list
// itself. Used by history clearing; durable rows are untouched.
func (c *ChatCache) ClearScope(ctx context.Context, listKey string) error {
	ids, err := c.rdb.LRange(ctx, listKey, 0, -1).Result()
	if err != nil {
		return err
	}
	pipe := c.rdb.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, EntryKey(id))
	}
	pipe.Del(ctx, listKey)
	_, err = pipe.Exec(ctx)
	return err
}
