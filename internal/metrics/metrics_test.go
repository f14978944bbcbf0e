package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txdash/internal/core"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_DatasetLifecycle(t *testing.T) {
	m := New()

	assert.Contains(t, scrape(t, m), `txdash_dataset_state{state="pending"} 1`)

	require.NoError(t, m.Notify(context.Background(), core.DatasetStatus{State: core.StateReady, Records: 60}))

	body := scrape(t, m)
	assert.Contains(t, body, `txdash_dataset_state{state="pending"} 0`)
	assert.Contains(t, body, `txdash_dataset_state{state="ready"} 1`)
	assert.Contains(t, body, `txdash_dataset_records 60`)
	assert.Contains(t, body, `txdash_seed_runs_total{result="success"} 1`)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveHTTP("/api/statistics", http.MethodGet, 200, 15*time.Millisecond)
	m.QueryFailed("statistics")
	m.RegisterCacheStats(func() (int64, int64) { return 3, 4 })

	body := scrape(t, m)
	assert.Contains(t, body, `txdash_http_requests_total{code="200",method="GET",route="/api/statistics"} 1`)
	assert.Contains(t, body, `txdash_query_errors_total{operation="statistics"} 1`)
	assert.Contains(t, body, `txdash_cache_hits_total 3`)
	assert.Contains(t, body, `txdash_cache_misses_total 4`)
}
