// Package repo implements the durable tier for chat entries, backed by GORM.
// This file provides the aggregate queries behind chat statistics. Stats are
// always computed from the database, never the cache: the capped, TTL-bound
// cache lists cannot answer counts over the full history.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// ChatStats holds aggregate counts for a user within an optional scope.
type ChatStats struct {
	TotalChats int64 `json:"totalChats"`
	TodayChats int64 `json:"todayChats"`
}

// GetChatStats returns the total number of entries and the number created
// since midnight UTC, scoped like ListChats (material filter wins over
// space). When the user has no entries both counts are 0.
func GetChatStats(ctx context.Context, db *gorm.DB, userID, spaceID, studyMaterialID string) (ChatStats, error) {
	var stats ChatStats

	q := scopeQuery(db.WithContext(ctx), userID, spaceID, studyMaterialID)
	if err := q.Count(&stats.TotalChats).Error; err != nil {
		return ChatStats{}, err
	}
	if stats.TotalChats == 0 {
		return stats, nil
	}

	today := scopeQuery(db.WithContext(ctx), userID, spaceID, studyMaterialID).
		Where("created_at >= ?", startOfToday(time.Now()))
	if err := today.Count(&stats.TodayChats).Error; err != nil {
		return ChatStats{}, err
	}
	return stats, nil
}
