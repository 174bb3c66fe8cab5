package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foliofox/foliofox/pkg/catalog"
)

func TestOptimizePriorityDecrementsOldItems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	indexerID := mustCreateIndexer(t, store)
	id, err := store.EnqueueDownload(ctx, catalog.DownloadItem{
		IndexerID: indexerID, Title: "old book", URL: "http://example.com/a", Format: "epub", Priority: 5,
	})
	require.NoError(t, err)
	backdate(t, store, id, time.Now().Add(-3*time.Hour))

	require.NoError(t, OptimizePriority(ctx, store, 4, 0))

	item, err := store.GetDownloadItem(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 4, item.Priority)
}

func TestOptimizePriorityIncrementsHighRetryItems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	indexerID := mustCreateIndexer(t, store)
	id, err := store.EnqueueDownload(ctx, catalog.DownloadItem{
		IndexerID: indexerID, Title: "flaky book", URL: "http://example.com/b", Format: "epub", Priority: 5,
	})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, _, err := store.FailDownload(ctx, id, "network error")
		require.NoError(t, err)
		require.NoError(t, store.ResetToPending(ctx, id))
	}

	require.NoError(t, OptimizePriority(ctx, store, 4, 0))

	item, err := store.GetDownloadItem(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 6, item.Priority)
}

func TestOptimizePriorityFavorsSmallItemsUnderLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	indexerID := mustCreateIndexer(t, store)
	small := int64(1024)
	id, err := store.EnqueueDownload(ctx, catalog.DownloadItem{
		IndexerID: indexerID, Title: "small book", URL: "http://example.com/c", Format: "epub",
		Priority: 5, SizeBytes: &small,
	})
	require.NoError(t, err)

	require.NoError(t, OptimizePriority(ctx, store, 4, 4)) // 100% load

	item, err := store.GetDownloadItem(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 4, item.Priority)
}

func mustCreateIndexer(t *testing.T, store *catalog.Store) int64 {
	t.Helper()
	id, err := store.CreateIndexer(context.Background(), catalog.Indexer{
		Name: "test", Type: catalog.IndexerGeneric, BaseURL: "http://example.com",
		Priority: 1, Active: true, TimeoutMS: 1000, RateLimitPerWindow: 60, WindowMS: 60000,
	})
	require.NoError(t, err)
	return id
}
