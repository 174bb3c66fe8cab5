package queue

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/foliofox/foliofox/pkg/catalog"
)

func noopLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func newTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "foliofox-queue-test.db")
	s, err := catalog.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// backdate rewrites a download_queue row's created_at/updated_at so
// age-dependent tests (retry cooldown, priority aging) don't have to
// sleep in real time.
func backdate(t *testing.T, store *catalog.Store, id int64, when time.Time) {
	t.Helper()
	_, err := store.DB().Exec(`UPDATE download_queue SET created_at = ?, updated_at = ? WHERE id = ?`,
		when.Unix(), when.Unix(), id)
	require.NoError(t, err)
}
