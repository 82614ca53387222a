package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/workbay/garagedesk/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is a flat string key/value persistence backend for the session.
// Get returns "" for a missing key.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(keys ...string) error
}

// MemoryStore keeps values in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[key], nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.data, k)
	}
	s.mu.Unlock()
	return nil
}

// Len reports how many keys are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// GormStore persists values as rows of models.SessionEntry.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a migrated database.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(key string) (string, error) {
	var entry models.SessionEntry
	err := s.db.Where("`key` = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("session: get %s: %w", key, err)
	}
	return entry.Value, nil
}

func (s *GormStore) Set(key, value string) error {
	entry := models.SessionEntry{Key: key, Value: value}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry)
	if result.Error != nil {
		return fmt.Errorf("session: set %s: %w", key, result.Error)
	}
	return nil
}

func (s *GormStore) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.db.Where("`key` IN ?", keys).Delete(&models.SessionEntry{}).Error; err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}
