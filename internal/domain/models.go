// Package domain defines the persistence model for chat exchanges. A chat
// exchange (one query/response pair) is the unit of persistence across both
// storage tiers: it is serialized to JSON for the Redis cache tier and mapped
// with GORM for the durable relational tier.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ChatType classifies the scope of an exchange.
type ChatType string

const (
	// ChatTypeMaterial marks an exchange tied to a single study material.
	ChatTypeMaterial ChatType = "MATERIAL"
	// ChatTypeSpace marks an exchange tied to a space (possibly spanning
	// several materials).
	ChatTypeSpace ChatType = "SPACE"
)

// StringList is an ordered list of ids stored as a JSON text column, so the
// same model works across SQLite and Postgres without an array type.
type StringList []string

// Value implements driver.Valuer. A nil list is stored as SQL NULL.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner, accepting the text/blob forms drivers produce.
func (l *StringList) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("domain: cannot scan %T into StringList", src)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(l))
}

// ChatEntry represents one stored query/response exchange. Entries are
// write-once: after creation only their storage location (cache vs durable)
// changes, never their content.
//
// Fields:
//   - ID: unique string id generated at save time (chat_<millis>_<suffix>).
//   - UserID: owner; every entry belongs to exactly one user.
//   - ChatType: MATERIAL when StudyMaterialID is set, SPACE otherwise.
//   - SpaceID / StudyMaterialID: optional scope references. The singular
//     StudyMaterialID is authoritative for scoping; StudyMaterialIDs carries
//     the materials consulted for a space-level answer as metadata only.
//   - Query / Response: text payloads.
//   - CreatedAt: set once at creation; the sort key for history ordering.
//     UpdatedAt mirrors it (no in-place edits occur in this subsystem).
//
// JSON field names follow the cache payload contract (camelCase), which is
// also the shape returned by the HTTP API.
type ChatEntry struct {
	ID               string     `json:"id"                         gorm:"type:varchar(64);primaryKey"`
	UserID           string     `json:"userId"                     gorm:"type:varchar(64);not null;index:idx_user_entries,priority:1"`
	ChatType         ChatType   `json:"chatType"                   gorm:"type:varchar(16);not null;check:chat_type IN ('MATERIAL','SPACE')"`
	SpaceID          string     `json:"spaceId,omitempty"          gorm:"type:varchar(64);index"`
	StudyMaterialID  string     `json:"studyMaterialId,omitempty"  gorm:"type:varchar(64);index"`
	StudyMaterialIDs StringList `json:"studyMaterialIds,omitempty" gorm:"type:text"`
	Query            string     `json:"query"                      gorm:"type:text;not null"`
	Response         string     `json:"response"                   gorm:"type:text;not null"`
	CreatedAt        time.Time  `json:"createdAt"                  gorm:"index:idx_user_entries,priority:2"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// TableName returns the database table name for ChatEntry.
func (ChatEntry) TableName() string { return "chat_entries" }
