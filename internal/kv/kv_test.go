package kv

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/pricing-admin/internal/config"
	"github.com/smartdevs17/pricing-admin/internal/metrics"
	"github.com/smartdevs17/pricing-admin/internal/storage"
	"github.com/smartdevs17/pricing-admin/pkg/utils"
)

func newTestStore(t *testing.T) (*StorageStore, *metrics.Manager) {
	t.Helper()

	backend, err := storage.Open(&config.StorageConfig{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "kv.db"),
		MaxConnections:   2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	manager := metrics.NewManager()
	return NewStorageStore(backend, manager), manager
}

func TestStoreGetMissingReturnsNil(t *testing.T) {
	store, manager := newTestStore(t)

	value, err := store.Get(context.Background(), "customer-discount:none")
	require.NoError(t, err)
	assert.Nil(t, value)
	assert.Equal(t, 1.0, testutil.ToFloat64(manager.GetPrometheusMetrics().KVLookupsTotal.WithLabelValues("miss")))
}

func TestStoreRoundTrip(t *testing.T) {
	store, manager := newTestStore(t)
	ctx := context.Background()

	deal := map[string]interface{}{
		"name":     "Summer Bundle",
		"discount": 15,
		"products": []string{"pre-roll", "edible"},
	}
	require.NoError(t, store.Set(ctx, "bundle:summer", deal, 0))

	value, err := store.Get(ctx, "bundle:summer")
	require.NoError(t, err)

	decoded, ok := value.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Summer Bundle", decoded["name"])
	assert.Equal(t, float64(15), decoded["discount"])
	assert.Len(t, decoded["products"], 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(manager.GetPrometheusMetrics().KVLookupsTotal.WithLabelValues("hit")))
}

func TestStoreExpiry(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }
	require.NoError(t, store.Set(ctx, "bogo:flash", "active", time.Minute))

	value, err := store.Get(ctx, "bogo:flash")
	require.NoError(t, err)
	assert.Equal(t, "active", value)

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	value, err = store.Get(ctx, "bogo:flash")
	require.NoError(t, err)
	assert.Nil(t, value)

	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestStoreDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "tier:silver", 250, 0))
	require.NoError(t, store.Delete(ctx, "tier:silver"))
	require.NoError(t, store.Delete(ctx, "tier:silver"))

	value, err := store.Get(ctx, "tier:silver")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestValidateKey(t *testing.T) {
	assert.True(t, utils.HasCode(ValidateKey(""), utils.ErrCodeValidation))
	assert.Error(t, ValidateKey(strings.Repeat("k", MaxKeyLength+1)))
	assert.NoError(t, ValidateKey("inventory-discount:42"))
}
