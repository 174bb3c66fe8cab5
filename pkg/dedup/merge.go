package dedup

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/foliofox/foliofox/pkg/catalog"
)

// Merge folds secondaryID into primaryID inside one transaction:
// download_queue, download_history, and book_files rows are
// redirected to the primary, merge_metadata fills gaps on the primary
// from the secondary when requested, and the secondary's join rows
// and book row are then removed. Every statement uses bound
// parameters; no field is ever interpolated into SQL text.
func Merge(ctx context.Context, store *catalog.Store, primaryID, secondaryID int64, action Action) error {
	primary, err := store.GetBook(ctx, primaryID)
	if err != nil {
		return fmt.Errorf("load primary book %d: %w", primaryID, err)
	}
	secondary, err := store.GetBook(ctx, secondaryID)
	if err != nil {
		return fmt.Errorf("load secondary book %d: %w", secondaryID, err)
	}

	beforeScore := Completeness(*primary)
	merged := *primary
	if action == ActionMergeMetadata {
		mergeMetadata(&merged, *secondary)
	}

	err = store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"book_files", "download_history", "download_queue"} {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`UPDATE %s SET book_id = ? WHERE book_id = ?`, table),
				primaryID, secondaryID); err != nil {
				return fmt.Errorf("redirect %s rows: %w", table, err)
			}
		}

		if err := redirectAuthors(ctx, tx, primaryID, secondaryID, merged.Authors); err != nil {
			return err
		}
		if err := redirectGenres(ctx, tx, primaryID, secondaryID, merged.Genres); err != nil {
			return err
		}
		if err := redirectTags(ctx, tx, primaryID, secondaryID, merged.Tags); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE books SET title=?, subtitle=?, description=?, isbn10=?, isbn13=?, asin=?,
    publication_date=?, publisher=?, language=?, page_count=?, rating_avg=?, rating_count=?,
    series=?, series_position=?
WHERE id=?`,
			merged.Title, nullIfEmpty(merged.Subtitle), nullIfEmpty(merged.Description),
			nullIfEmpty(merged.ISBN10), nullIfEmpty(merged.ISBN13), nullIfEmpty(merged.ASIN),
			nullIfEmpty(merged.PublicationDate), nullIfEmpty(merged.Publisher), nullIfEmpty(merged.Language),
			merged.PageCount, merged.RatingAvg, merged.RatingCount, nullIfEmpty(merged.Series),
			merged.SeriesPosition, primaryID); err != nil {
			return fmt.Errorf("update merged book %d: %w", primaryID, err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE books SET file_count = file_count + ?, total_file_size = total_file_size + ? WHERE id = ?`,
			secondary.FileCount, secondary.TotalFileSize, primaryID); err != nil {
			return fmt.Errorf("fold secondary file totals into primary %d: %w", primaryID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM book_authors WHERE book_id = ?`, secondaryID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM book_genres WHERE book_id = ?`, secondaryID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM book_tags WHERE book_id = ?`, secondaryID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, secondaryID); err != nil {
			return fmt.Errorf("delete secondary book %d: %w", secondaryID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	afterScore := Completeness(merged)
	details := fmt.Sprintf("primary=%d secondary=%d action=%s before_completeness=%.3f after_completeness=%.3f",
		primaryID, secondaryID, action, beforeScore, afterScore)
	return store.LogSystem(ctx, "info", "dedup", "merged duplicate book", details)
}

// mergeMetadata implements §4.5's merge_metadata rule: fill null/empty
// scalar fields on primary from secondary, prefer the longer
// description, and adopt secondary's rating only if its vote count is
// strictly higher.
func mergeMetadata(primary *catalog.Book, secondary catalog.Book) {
	if primary.Subtitle == "" {
		primary.Subtitle = secondary.Subtitle
	}
	if len(secondary.Description) > len(primary.Description) {
		primary.Description = secondary.Description
	}
	if primary.ISBN10 == "" {
		primary.ISBN10 = secondary.ISBN10
	}
	if primary.ISBN13 == "" {
		primary.ISBN13 = secondary.ISBN13
	}
	if primary.ASIN == "" {
		primary.ASIN = secondary.ASIN
	}
	if primary.PublicationDate == "" {
		primary.PublicationDate = secondary.PublicationDate
	}
	if primary.Publisher == "" {
		primary.Publisher = secondary.Publisher
	}
	if primary.Language == "" {
		primary.Language = secondary.Language
	}
	if primary.PageCount == 0 {
		primary.PageCount = secondary.PageCount
	}
	if primary.Series == "" {
		primary.Series = secondary.Series
		primary.SeriesPosition = secondary.SeriesPosition
	}
	if secondary.RatingCount > primary.RatingCount {
		primary.RatingAvg = secondary.RatingAvg
		primary.RatingCount = secondary.RatingCount
	}
	primary.Authors = mergeUnique(primary.Authors, secondary.Authors)
	primary.Genres = mergeUnique(primary.Genres, secondary.Genres)
	primary.Tags = mergeUnique(primary.Tags, secondary.Tags)
}

func mergeUnique(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range a {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range b {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func redirectAuthors(ctx context.Context, tx *sql.Tx, primaryID, secondaryID int64, merged []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM book_authors WHERE book_id = ?`, primaryID); err != nil {
		return err
	}
	for i, a := range merged {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO book_authors (book_id, position, name) VALUES (?,?,?)`, primaryID, i, a); err != nil {
			return err
		}
	}
	return nil
}

func redirectGenres(ctx context.Context, tx *sql.Tx, primaryID, secondaryID int64, merged []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM book_genres WHERE book_id = ?`, primaryID); err != nil {
		return err
	}
	for _, g := range merged {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO book_genres (book_id, genre) VALUES (?,?)`, primaryID, g); err != nil {
			return err
		}
	}
	return nil
}

func redirectTags(ctx context.Context, tx *sql.Tx, primaryID, secondaryID int64, merged []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM book_tags WHERE book_id = ?`, primaryID); err != nil {
		return err
	}
	for _, t := range merged {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO book_tags (book_id, tag) VALUES (?,?)`, primaryID, t); err != nil {
			return err
		}
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
