package models

import "time"

// SessionEntry is one persisted identity value (token, account id, ...).
type SessionEntry struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}
