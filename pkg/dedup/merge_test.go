package dedup

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foliofox/foliofox/pkg/catalog"
)

func newTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "foliofox-dedup-test.db")
	s, err := catalog.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMergeKeepsPrimaryRedirectsFilesAndDeletesSecondary(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	primaryID, err := store.CreateBook(ctx, catalog.Book{Title: "Dune", Authors: []string{"Frank Herbert"}})
	require.NoError(t, err)
	secondaryID, err := store.CreateBook(ctx, catalog.Book{
		Title: "Dune", Description: "A desert planet epic.", Publisher: "Ace", FileCount: 1,
	})
	require.NoError(t, err)

	_, err = store.DB().ExecContext(ctx,
		`INSERT INTO book_files (book_id, path, format, size_bytes, created_at) VALUES (?,?,?,?,?)`,
		secondaryID, "/books/dune.epub", "epub", 1024, 0)
	require.NoError(t, err)

	err = Merge(ctx, store, primaryID, secondaryID, ActionMergeMetadata)
	require.NoError(t, err)

	_, err = store.GetBook(ctx, secondaryID)
	require.ErrorIs(t, err, sql.ErrNoRows)

	primary, err := store.GetBook(ctx, primaryID)
	require.NoError(t, err)
	require.Equal(t, "A desert planet epic.", primary.Description)
	require.Equal(t, "Ace", primary.Publisher)
	require.Equal(t, 1, primary.FileCount)

	var redirected int64
	err = store.DB().QueryRowContext(ctx, `SELECT book_id FROM book_files WHERE book_id = ?`, primaryID).Scan(&redirected)
	require.NoError(t, err)
	require.Equal(t, primaryID, redirected)
}

func TestMergeKeepAActionDoesNotOverwritePrimaryFields(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	primaryID, err := store.CreateBook(ctx, catalog.Book{Title: "Dune", Publisher: "Chilton"})
	require.NoError(t, err)
	secondaryID, err := store.CreateBook(ctx, catalog.Book{Title: "Dune", Publisher: "Ace"})
	require.NoError(t, err)

	err = Merge(ctx, store, primaryID, secondaryID, ActionKeepA)
	require.NoError(t, err)

	primary, err := store.GetBook(ctx, primaryID)
	require.NoError(t, err)
	require.Equal(t, "Chilton", primary.Publisher)
}
