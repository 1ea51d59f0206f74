package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagersUseIsolatedRegistries(t *testing.T) {
	first := NewManager()
	second := NewManager()

	first.GetPrometheusMetrics().RecordKVLookup("hit")

	assert.Equal(t, 1.0, testutil.ToFloat64(first.GetPrometheusMetrics().KVLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 0.0, testutil.ToFloat64(second.GetPrometheusMetrics().KVLookupsTotal.WithLabelValues("hit")))
}

func TestRecordGitProviderCheck(t *testing.T) {
	m := NewManager().GetPrometheusMetrics()

	m.RecordGitProviderCheck("github", true, 20*time.Millisecond)
	m.RecordGitProviderCheck("gitlab", false, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GitProviderConnected.WithLabelValues("github")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.GitProviderConnected.WithLabelValues("gitlab")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GitProviderChecksTotal.WithLabelValues("gitlab", "disconnected")))
}

func TestRecordAuditCleanup(t *testing.T) {
	m := NewManager().GetPrometheusMetrics()

	m.RecordAuditCleanup(3)
	m.RecordAuditCleanup(2)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.AuditEntriesCleanedTotal))
}

func TestHandlerExposesMetrics(t *testing.T) {
	manager := NewManager()
	manager.UpdateSystemMetrics()
	manager.GetPrometheusMetrics().UpdateComponentHealth("storage", true)
	manager.GetPrometheusMetrics().RecordHTTPRequest("GET", "/api/kv/get", "200", 5*time.Millisecond)

	rec := httptest.NewRecorder()
	manager.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "pricing_admin_http_requests_total")
	assert.Contains(t, string(body), `pricing_admin_component_health{component="storage"} 1`)
	assert.Contains(t, string(body), "pricing_admin_goroutines")
}
