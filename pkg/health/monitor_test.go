package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foliofox/foliofox/pkg/breaker"
	"github.com/foliofox/foliofox/pkg/catalog"
)

func newTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "foliofox-health-test.db")
	s, err := catalog.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestClassifyHealthyBelowThreshold(t *testing.T) {
	require.Equal(t, catalog.HealthDegraded, classify(false, 0, 5, 1.0))
	require.Equal(t, catalog.HealthDown, classify(false, 4, 5, 1.0))
	require.Equal(t, catalog.HealthRecovering, classify(true, 2, 5, 1.0))
	require.Equal(t, catalog.HealthHealthy, classify(true, 0, 5, 0.97))
	require.Equal(t, catalog.HealthDegraded, classify(true, 0, 5, 0.85))
	require.Equal(t, catalog.HealthDown, classify(true, 0, 5, 0.5))
}

func TestMonitorTickRecordsHealthySample(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newTestStore(t)
	ctx := context.Background()
	indexerID, err := store.CreateIndexer(ctx, catalog.Indexer{
		Name: "up", Type: catalog.IndexerGeneric, BaseURL: server.URL,
		Priority: 1, Active: true, TimeoutMS: 1000, RateLimitPerWindow: 60, WindowMS: 60000,
	})
	require.NoError(t, err)

	reg := breaker.NewRegistry(breaker.DefaultConfig())
	mon := NewMonitor(store, reg, MonitorConfig{MaxConcurrentChecks: 2, FailureThreshold: 5, MaxRecoveryAttempts: 5}, server.Client())
	mon.tick(ctx)

	sample, err := store.LatestHealth(ctx, indexerID)
	require.NoError(t, err)
	require.Equal(t, catalog.HealthHealthy, sample.Status)
}

func TestMonitorTriggersFailoverAfterThreshold(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := newTestStore(t)
	ctx := context.Background()
	indexerID, err := store.CreateIndexer(ctx, catalog.Indexer{
		Name: "down", Type: catalog.IndexerGeneric, BaseURL: server.URL,
		Priority: 1, Active: true, TimeoutMS: 1000, RateLimitPerWindow: 60, WindowMS: 60000,
	})
	require.NoError(t, err)

	reg := breaker.NewRegistry(breaker.Config{FailureThreshold: 2, RecoveryTimeout: 0})
	mon := NewMonitor(store, reg, MonitorConfig{MaxConcurrentChecks: 2, FailureThreshold: 2, MaxRecoveryAttempts: 5}, server.Client())

	mon.tick(ctx)
	mon.tick(ctx)

	mon.mu.Lock()
	failed := mon.failedIndexers[indexerID]
	mon.mu.Unlock()
	require.True(t, failed)

	logs, err := store.RecentSystemLogs(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
}
