// Package kv is the key-value store the admin API reads pricing-rule records from.
package kv

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/pricing-admin/internal/metrics"
	"github.com/smartdevs17/pricing-admin/internal/models"
	"github.com/smartdevs17/pricing-admin/internal/storage"
	"github.com/smartdevs17/pricing-admin/pkg/utils"
)

// MaxKeyLength bounds the size of a key in bytes
const MaxKeyLength = 256

// Store is a JSON key-value store. Get returns a nil value and nil error for a
// key that is missing or expired.
type Store interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// StorageStore implements Store on top of the persistent storage layer
type StorageStore struct {
	storage        storage.Storage
	metricsManager *metrics.Manager
	logger         *logrus.Entry
	now            func() time.Time
}

// NewStorageStore creates a key-value store backed by storage
func NewStorageStore(store storage.Storage, metricsManager *metrics.Manager) *StorageStore {
	return &StorageStore{
		storage:        store,
		metricsManager: metricsManager,
		logger:         utils.ComponentLogger("kv"),
		now:            time.Now,
	}
}

// ValidateKey checks that a key is usable
func ValidateKey(key string) error {
	if key == "" {
		return utils.NewAppError(utils.ErrCodeValidation, "Key is required")
	}
	if len(key) > MaxKeyLength {
		return utils.NewAppError(utils.ErrCodeValidation, "Key is too long", key[:32]+"...")
	}
	return nil
}

// Get returns the decoded JSON value stored under key
func (s *StorageStore) Get(ctx context.Context, key string) (interface{}, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	entry, err := s.storage.GetValue(ctx, key)
	if utils.IsNotFound(err) {
		s.recordLookup("miss")
		return nil, nil
	}
	if err != nil {
		s.recordLookup("error")
		return nil, err
	}

	if entry.Expired(s.now()) {
		s.recordLookup("miss")
		s.logger.WithField("key", key).Debug("Key expired")
		return nil, nil
	}

	var value interface{}
	if err := json.Unmarshal(entry.Value, &value); err != nil {
		s.recordLookup("error")
		return nil, utils.NewAppError(utils.ErrCodeInternal, "Stored value is not valid JSON", err.Error())
	}

	s.recordLookup("hit")
	return value, nil
}

// Set stores value under key. A positive ttl makes the entry expire.
func (s *StorageStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeValidation, "Value is not JSON serializable", err.Error())
	}

	now := s.now().UTC()
	entry := &models.KVEntry{
		Key:       key,
		Value:     raw,
		UpdatedAt: now,
	}
	if ttl > 0 {
		expires := now.Add(ttl)
		entry.ExpiresAt = &expires
	}

	return s.storage.SetValue(ctx, entry)
}

// Delete removes key. Deleting a missing key is not an error.
func (s *StorageStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	if err := s.storage.DeleteValue(ctx, key); err != nil && !utils.IsNotFound(err) {
		return err
	}
	return nil
}

// PurgeExpired removes entries whose expiry has passed
func (s *StorageStore) PurgeExpired(ctx context.Context) (int64, error) {
	purged, err := s.storage.PurgeExpiredValues(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.logger.WithField("purged", purged).Info("Purged expired keys")
	}
	return purged, nil
}

func (s *StorageStore) recordLookup(result string) {
	if s.metricsManager != nil {
		s.metricsManager.GetPrometheusMetrics().RecordKVLookup(result)
	}
}
