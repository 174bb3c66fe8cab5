package queue

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foliofox/foliofox/pkg/breaker"
	"github.com/foliofox/foliofox/pkg/catalog"
)

func TestSchedulerAdmitsAndCompletesPendingItem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("book bytes"))
	}))
	defer server.Close()

	store := newTestStore(t)
	ctx := context.Background()
	indexerID := mustCreateIndexer(t, store)
	id, err := store.EnqueueDownload(ctx, catalog.DownloadItem{
		IndexerID: indexerID, Title: "Scheduled Book", URL: server.URL, Format: "epub", Priority: 5,
	})
	require.NoError(t, err)

	reg := breaker.NewRegistry(breaker.DefaultConfig())
	sched := NewScheduler(store, reg, nil, SchedulerConfig{
		MaxConcurrent:  4,
		DownloadsDir:   t.TempDir(),
		ChunkSizeBytes: 1024,
		ItemTimeout:    5 * time.Second,
		StaleThreshold: time.Hour,
	})
	sched.task.client = server.Client()

	logger := noopLogger()
	sched.scheduleOnce(ctx, logger)

	require.Eventually(t, func() bool {
		item, err := store.GetDownloadItem(ctx, id)
		require.NoError(t, err)
		return item.Status == catalog.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerReclaimsStaleDownloadingItems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	indexerID := mustCreateIndexer(t, store)
	id, err := store.EnqueueDownload(ctx, catalog.DownloadItem{
		IndexerID: indexerID, Title: "Stuck Book", URL: "http://example.com/x", Format: "epub", Priority: 5,
	})
	require.NoError(t, err)
	claimed, err := store.ClaimForDownload(ctx, id)
	require.NoError(t, err)
	require.True(t, claimed)
	backdate(t, store, id, time.Now().Add(-2*time.Hour))

	reg := breaker.NewRegistry(breaker.DefaultConfig())
	sched := NewScheduler(store, reg, nil, SchedulerConfig{
		MaxConcurrent:  4,
		DownloadsDir:   t.TempDir(),
		ChunkSizeBytes: 1024,
		ItemTimeout:    5 * time.Second,
		StaleThreshold: time.Hour,
	})

	sched.scanStale(ctx, noopLogger())

	item, err := store.GetDownloadItem(ctx, id)
	require.NoError(t, err)
	require.Equal(t, catalog.StatusPending, item.Status)
}

func TestSchedulerEnforcesAtMostOneTaskPerItem(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	indexerID := mustCreateIndexer(t, store)
	id, err := store.EnqueueDownload(ctx, catalog.DownloadItem{
		IndexerID: indexerID, Title: "Dup Book", URL: "http://example.com/x", Format: "epub", Priority: 5,
	})
	require.NoError(t, err)

	reg := breaker.NewRegistry(breaker.DefaultConfig())
	sched := NewScheduler(store, reg, nil, SchedulerConfig{
		MaxConcurrent:  4,
		DownloadsDir:   t.TempDir(),
		ChunkSizeBytes: 1024,
		ItemTimeout:    5 * time.Second,
	})

	logger := noopLogger()
	started1 := sched.startTask(ctx, id, logger)
	started2 := sched.startTask(ctx, id, logger)
	require.True(t, started1)
	require.False(t, started2)

	sched.cancelAll()
}
