package models

import (
	"encoding/json"
	"time"
)

// KVEntry is a stored key/value pair. Value holds raw JSON.
type KVEntry struct {
	Key       string          `json:"key" db:"key"`
	Value     json.RawMessage `json:"value" db:"value"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty" db:"expires_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// Expired reports whether the entry is past its expiry at the given instant
func (e *KVEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}
