package storage

import (
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// kvEntry is the single-table schema for durable key-value state.
type kvEntry struct {
	Key   string `gorm:"primaryKey;column:k;size:255"`
	Value string `gorm:"column:v"`
}

func (kvEntry) TableName() string { return "kv_entries" }

// SQLiteStore is a KV backed by a local SQLite database.
// This is the only state that must survive process death (session id and
// the past-kitchen record), so a single-file database is sufficient.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates
// the key-value table. Use ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, fmt.Errorf("migrating kv table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get returns the value for key, with ok=false when the key is absent.
func (s *SQLiteStore) Get(key string) (string, bool, error) {
	var entry kvEntry
	err := s.db.First(&entry, "k = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %q: %w", key, err)
	}
	return entry.Value, true, nil
}

// Set writes the value for key, replacing any existing value.
func (s *SQLiteStore) Set(key, value string) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "k"}},
		DoUpdates: clause.AssignmentColumns([]string{"v"}),
	}).Create(&kvEntry{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

// Remove deletes the key. Removing a missing key is not an error.
func (s *SQLiteStore) Remove(key string) error {
	if err := s.db.Delete(&kvEntry{}, "k = ?", key).Error; err != nil {
		return fmt.Errorf("kv remove %q: %w", key, err)
	}
	return nil
}

// Verify SQLiteStore implements KV at compile time.
var _ KV = (*SQLiteStore)(nil)
