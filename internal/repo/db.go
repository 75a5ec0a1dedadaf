// Package repo implements the durable tier for chat entries, backed by GORM.
// This file bootstraps the SQLite database via the pure-Go glebarez driver.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/studyloop/go-chat-store/internal/domain"
)

// OpenSQLite opens or creates the database file at path and tunes it for a
// service workload: WAL so the sync job's bulk inserts don't block reads,
// and a busy timeout so concurrent writers queue instead of erroring.
func OpenSQLite(path string) (*gorm.DB, error) {
	// A missing parent directory surfaces from the driver as the cryptic
	// "out of memory (14)"; stat it up front to get a readable error.
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates or updates the chat entry table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.ChatEntry{})
}
