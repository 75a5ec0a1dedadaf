// Package repo implements the durable tier for chat entries, backed by GORM.
// This file provides repository functions for the ChatEntry model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When an entry is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// The durable tier is written at-least-once by the sync job, so the bulk
// insert skips rows whose primary key already exists instead of failing.
// Scope filtering mirrors cache key precedence: a study-material filter wins
// over a space filter when both are supplied.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studyloop/go-chat-store/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateChat inserts a single chat entry row. The caller supplies the id and
// timestamps; nothing is generated here.
func CreateChat(ctx context.Context, db *gorm.DB, entry *domain.ChatEntry) error {
	return db.WithContext(ctx).Create(entry).Error
}

// CreateChats bulk-inserts entries, skipping any whose id already exists.
// This is the idempotent write the sync job relies on: re-running a sync over
// ids that already reached the database is a no-op, not an error.
func CreateChats(ctx context.Context, db *gorm.DB, entries []domain.ChatEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entries).Error
}

// GetChat fetches a single entry by its id. If the record does not exist, it
// returns ErrNotFound. On other DB errors, the raw error is returned.
func GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.ChatEntry, error) {
	var entry domain.ChatEntry
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListChats returns a page of entries for userID, newest first, filtered by
// scope: when studyMaterialID is non-empty only that material's entries are
// returned; otherwise a non-empty spaceID filters by space; otherwise all of
// the user's entries match.
func ListChats(ctx context.Context, db *gorm.DB, userID, spaceID, studyMaterialID string, limit, offset int) ([]domain.ChatEntry, error) {
	var out []domain.ChatEntry
	err := scopeQuery(db.WithContext(ctx), userID, spaceID, studyMaterialID).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}

// DeleteChat removes an entry by id. Deleting a row that does not exist is
// not an error: the durable delete is best-effort and may race the sync job.
func DeleteChat(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.ChatEntry{}).Error
}

// scopeQuery composes the user + scope filter shared by list and stats
// queries, honoring material > space precedence.
func scopeQuery(db *gorm.DB, userID, spaceID, studyMaterialID string) *gorm.DB {
	q := db.Model(&domain.ChatEntry{}).Where("user_id = ?", userID)
	if studyMaterialID != "" {
		return q.Where("study_material_id = ?", studyMaterialID)
	}
	if spaceID != "" {
		return q.Where("space_id = ?", spaceID)
	}
	return q
}

// startOfToday returns midnight UTC of the current day, the lower bound for
// "today" counts.
func startOfToday(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
