package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshotTracksCounters(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/reports", http.StatusOK, 20*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordAttachment("remote")
	m.RecordAttachment("local")
	m.RecordRateLimited("create_report")
	m.RecordConflict("version")

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.RequestsTotal)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.0001)
	assert.Equal(t, uint64(1), snap.RemoteFallbacks)
	assert.Equal(t, uint64(1), snap.RateLimited)
	assert.Equal(t, uint64(1), snap.Conflicts)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.attachments.WithLabelValues("local")))
}

func TestMetricsHandlerExposesNamespace(t *testing.T) {
	m := NewMetricsService()
	m.RecordJob("ai_summary", "done")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `qa_reports_background_jobs_total{outcome="done",queue="ai_summary"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	m.RecordConflict("race")
	assert.Zero(t, m.Snapshot().RequestsTotal)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
