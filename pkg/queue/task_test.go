package queue

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foliofox/foliofox/pkg/breaker"
	"github.com/foliofox/foliofox/pkg/catalog"
)

func TestSanitizeFilenameStripsForbiddenChars(t *testing.T) {
	require.Equal(t, "SomeBookTitle", sanitizeFilename(`Some<Book>Title`))
	require.Equal(t, "abc", sanitizeFilename(`a"b:c`))
}

func TestSanitizeFilenameTruncatesTo200(t *testing.T) {
	long := ""
	for i := 0; i < 250; i++ {
		long += "x"
	}
	require.Len(t, sanitizeFilename(long), 200)
}

func TestSanitizeFilenameFallsBackWhenEmpty(t *testing.T) {
	require.Equal(t, "download", sanitizeFilename(`<>:"/\|?*`))
}

func TestTaskRunDownloadsAndCompletes(t *testing.T) {
	body := "ebook contents"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer server.Close()

	store := newTestStore(t)
	ctx := context.Background()
	indexerID := mustCreateIndexer(t, store)
	id, err := store.EnqueueDownload(ctx, catalog.DownloadItem{
		IndexerID: indexerID, Title: "Test Book", URL: server.URL, Format: "epub", Priority: 5,
	})
	require.NoError(t, err)

	dir := t.TempDir()
	reg := breaker.NewRegistry(breaker.DefaultConfig())
	task := NewTask(store, reg, NewBandwidthLimiter(0), server.Client(), dir, 1024, 5*time.Second)

	started, err := task.Run(ctx, id)
	require.NoError(t, err)
	require.True(t, started)

	item, err := store.GetDownloadItem(ctx, id)
	require.NoError(t, err)
	require.Equal(t, catalog.StatusCompleted, item.Status)
	require.Equal(t, 100, item.ProgressPct)
	require.FileExists(t, item.LocalPath)

	contents, err := os.ReadFile(item.LocalPath)
	require.NoError(t, err)
	require.Equal(t, body, string(contents))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), "temp_")
	}
}

func TestTaskRunFailsOnNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	store := newTestStore(t)
	ctx := context.Background()
	indexerID := mustCreateIndexer(t, store)
	id, err := store.EnqueueDownload(ctx, catalog.DownloadItem{
		IndexerID: indexerID, Title: "Missing Book", URL: server.URL, Format: "epub", Priority: 5,
	})
	require.NoError(t, err)

	dir := t.TempDir()
	reg := breaker.NewRegistry(breaker.DefaultConfig())
	task := NewTask(store, reg, NewBandwidthLimiter(0), server.Client(), dir, 1024, 5*time.Second)

	started, err := task.Run(ctx, id)
	require.NoError(t, err)
	require.True(t, started)

	item, err := store.GetDownloadItem(ctx, id)
	require.NoError(t, err)
	require.Equal(t, catalog.StatusFailed, item.Status)
	require.Equal(t, 1, item.RetryCount)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestTaskRunSkipsAlreadyClaimedItem(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	indexerID := mustCreateIndexer(t, store)
	id, err := store.EnqueueDownload(ctx, catalog.DownloadItem{
		IndexerID: indexerID, Title: "Racing Book", URL: "http://example.com/x", Format: "epub", Priority: 5,
	})
	require.NoError(t, err)

	claimed, err := store.ClaimForDownload(ctx, id)
	require.NoError(t, err)
	require.True(t, claimed)

	dir := t.TempDir()
	reg := breaker.NewRegistry(breaker.DefaultConfig())
	task := NewTask(store, reg, NewBandwidthLimiter(0), http.DefaultClient, dir, 1024, 5*time.Second)

	started, err := task.Run(ctx, id)
	require.NoError(t, err)
	require.False(t, started)
}

func TestTaskDownloadsToSanitizedFinalPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer server.Close()

	store := newTestStore(t)
	ctx := context.Background()
	indexerID := mustCreateIndexer(t, store)
	id, err := store.EnqueueDownload(ctx, catalog.DownloadItem{
		IndexerID: indexerID, Title: `Weird<Title>Name`, URL: server.URL, Format: "epub", Priority: 5,
	})
	require.NoError(t, err)

	dir := t.TempDir()
	reg := breaker.NewRegistry(breaker.DefaultConfig())
	task := NewTask(store, reg, NewBandwidthLimiter(0), server.Client(), dir, 1024, 5*time.Second)

	_, err = task.Run(ctx, id)
	require.NoError(t, err)

	item, err := store.GetDownloadItem(ctx, id)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "WeirdTitleName.epub"), item.LocalPath)
}
