package database

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gymfuel/gymfuel-sync/config"
)

// New opens the on-device mirror database. The mirror is a single per-device
// SQLite file shared by every service in the daemon.
func New(cfg *config.Config) (*gorm.DB, error) {
	db, err := Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to migrate mirror database: %w", err)
	}
	return db, nil
}

// Open opens a mirror database at the given path without migrating it.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error opening mirror database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("error accessing underlying connection: %w", err)
	}
	// A single writer avoids SQLITE_BUSY on interleaved service calls.
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return nil, fmt.Errorf("error enabling WAL mode: %w", err)
	}
	if err := db.Exec("PRAGMA foreign_keys=ON").Error; err != nil {
		return nil, fmt.Errorf("error enabling foreign keys: %w", err)
	}

	return db, nil
}
