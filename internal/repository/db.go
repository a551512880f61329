package repository

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/exponent-ml/exponent/internal/domain"
)

// InitDB opens the local SQLite job index and runs migrations. The index
// only caches last-known job statuses; the execution backend remains the
// source of truth for job lifecycle.
func InitDB(path string) (*gorm.DB, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open job index: %w", err)
	}

	// WAL mode for better concurrency (SQLite specific)
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA foreign_keys=ON")

	if err := db.AutoMigrate(&domain.TrainingJob{}); err != nil {
		return nil, fmt.Errorf("failed to migrate job index: %w", err)
	}
	return db, nil
}
