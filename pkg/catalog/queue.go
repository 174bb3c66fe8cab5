package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnqueueDownload inserts a new pending download_queue row.
func (s *Store) EnqueueDownload(ctx context.Context, d DownloadItem) (int64, error) {
	now := time.Now()
	if d.Status == "" {
		d.Status = StatusPending
	}
	if d.Priority == 0 {
		d.Priority = 5
	}
	if d.MaxRetries == 0 {
		d.MaxRetries = 3
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO download_queue (user_id, book_id, indexer_id, title, author, url, format, size_bytes,
    priority, status, progress_pct, retry_count, max_retries, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,0,0,?,?,?)`,
		nullStr(d.UserID), d.BookID, d.IndexerID, d.Title, nullStr(d.Author), d.URL, d.Format,
		d.SizeBytes, d.Priority, string(d.Status), d.MaxRetries, now.Unix(), now.Unix())
	if err != nil {
		return 0, fmt.Errorf("enqueue download: %w", err)
	}
	return res.LastInsertId()
}

// GetDownloadItem loads a single download_queue row by ID.
func (s *Store) GetDownloadItem(ctx context.Context, id int64) (*DownloadItem, error) {
	items, err := s.queryDownloadItems(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, sql.ErrNoRows
	}
	return &items[0], nil
}

// ListPendingForScheduling implements §4.4 step 3: pending items
// ordered by priority ASC, new items (retry_count=0) first, then
// created_at ASC, limited to limit rows.
func (s *Store) ListPendingForScheduling(ctx context.Context, limit int) ([]DownloadItem, error) {
	return s.queryDownloadItems(ctx, `
WHERE status = 'pending'
ORDER BY priority ASC, (retry_count = 0) DESC, created_at ASC
LIMIT ?`, limit)
}

// ListAllPending returns every pending item, used by the priority
// optimization pass which must consider the whole queue rather than
// just the next scheduling batch.
func (s *Store) ListAllPending(ctx context.Context) ([]DownloadItem, error) {
	return s.queryDownloadItems(ctx, `WHERE status = 'pending'`)
}

// ListRetryEligible implements §4.4 step 4's base predicate:
// status=failed and retry_count < max_retries. It does not filter on
// updated_at, since the cooldown depends on each row's failure reason;
// the caller applies the per-reason cooldown and the smart-retry
// filter to the rows returned.
func (s *Store) ListRetryEligible(ctx context.Context) ([]DownloadItem, error) {
	return s.queryDownloadItems(ctx, `
WHERE status = 'failed' AND retry_count < max_retries
ORDER BY priority ASC, updated_at ASC`)
}

// ListStaleDownloading implements §4.4 step 6: items stuck in
// downloading past staleThreshold.
func (s *Store) ListStaleDownloading(ctx context.Context, staleThreshold time.Duration) ([]DownloadItem, error) {
	cutoff := time.Now().Add(-staleThreshold).Unix()
	return s.queryDownloadItems(ctx, `WHERE status = 'downloading' AND updated_at < ?`, cutoff)
}

// ClaimForDownload performs the compare-and-set pending->downloading
// transition §4.4 step 1 of the per-download task requires. It returns
// false (no error) if the row was no longer pending by the time this
// ran — the caller must then skip the item instead of starting work.
func (s *Store) ClaimForDownload(ctx context.Context, id int64) (bool, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE download_queue SET status = 'downloading', started_at = ?, updated_at = ? WHERE id = ? AND status = 'pending'`,
		now.Unix(), now.Unix(), id)
	if err != nil {
		return false, fmt.Errorf("claim download %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ResetToPending reverts a stale or cancelled-mid-flight download back
// to pending so the scheduler picks it up again.
func (s *Store) ResetToPending(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE download_queue SET status = 'pending', updated_at = ? WHERE id = ?`, time.Now().Unix(), id)
	return err
}

// UpdateProgress sets progress_pct for an in-flight download.
func (s *Store) UpdateProgress(ctx context.Context, id int64, pct int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE download_queue SET progress_pct = ?, updated_at = ? WHERE id = ?`, pct, time.Now().Unix(), id)
	return err
}

// CompleteDownload implements §4.4 step 7: one transaction marking the
// item completed and appending a download_history row.
func (s *Store) CompleteDownload(ctx context.Context, id int64, localPath string, durationSeconds float64) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		res, err := tx.ExecContext(ctx, `
UPDATE download_queue SET status = 'completed', progress_pct = 100, local_path = ?,
    completed_at = ?, updated_at = ? WHERE id = ?`, localPath, now.Unix(), now.Unix(), id)
		if err != nil {
			return fmt.Errorf("complete download %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("complete download %d: no such row", id)
		}

		var title string
		var bookID sql.NullInt64
		var indexerID int64
		var sizeBytes sql.NullInt64
		if err := tx.QueryRowContext(ctx,
			`SELECT title, book_id, indexer_id, size_bytes FROM download_queue WHERE id = ?`, id,
		).Scan(&title, &bookID, &indexerID, &sizeBytes); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
INSERT INTO download_history (download_id, book_id, indexer_id, title, status,
    download_duration_seconds, size_bytes, created_at)
VALUES (?,?,?,?,'completed',?,?,?)`,
			id, bookID, indexerID, title, durationSeconds, sizeBytes, now.Unix())
		return err
	})
}

// FailDownload implements §4.4 step 8: records the failure message,
// sets status=failed, and increments retry_count iff it would not
// exceed max_retries. It returns the item's retry_count after the
// update, and whether retry_count was incremented (false once it had
// already reached max_retries).
func (s *Store) FailDownload(ctx context.Context, id int64, errMsg string) (retryCount int, willRetry bool, err error) {
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		var current, maxRetries int
		if err := tx.QueryRowContext(ctx,
			`SELECT retry_count, max_retries FROM download_queue WHERE id = ?`, id,
		).Scan(&current, &maxRetries); err != nil {
			return err
		}

		retryCount = current
		if current+1 <= maxRetries {
			retryCount = current + 1
			willRetry = true
		}

		now := time.Now()
		_, err := tx.ExecContext(ctx, `
UPDATE download_queue SET status = 'failed', error_message = ?, retry_count = ?, updated_at = ?
WHERE id = ?`, errMsg, retryCount, now.Unix(), id)
		if err != nil {
			return err
		}

		var title string
		var bookID sql.NullInt64
		var indexerID int64
		if err := tx.QueryRowContext(ctx,
			`SELECT title, book_id, indexer_id FROM download_queue WHERE id = ?`, id,
		).Scan(&title, &bookID, &indexerID); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
INSERT INTO download_history (download_id, book_id, indexer_id, title, status, error_message, created_at)
VALUES (?,?,?,?,'failed',?,?)`, id, bookID, indexerID, title, errMsg, now.Unix())
		return err
	})
	return retryCount, willRetry, err
}

// CountFailuresSince counts failed download_history rows for an
// indexer within the window, used by the smart-retry filter's
// "≥5 failures in the last hour" rule.
func (s *Store) CountFailuresSince(ctx context.Context, indexerID int64, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM download_history WHERE indexer_id = ? AND status = 'failed' AND created_at >= ?`,
		indexerID, since.Unix()).Scan(&n)
	return n, err
}

// AdjustPriority implements the periodic priority-optimization pass
// (§4.4): delta is added to priority, clamped to [1,10].
func (s *Store) AdjustPriority(ctx context.Context, id int64, delta int) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE download_queue SET priority = MIN(10, MAX(1, priority + ?)), updated_at = ? WHERE id = ?`,
		delta, time.Now().Unix(), id)
	return err
}

// ListActiveDownloads returns every row currently downloading, used at
// startup to discover handles the scheduler must reconcile.
func (s *Store) ListActiveDownloads(ctx context.Context) ([]DownloadItem, error) {
	return s.queryDownloadItems(ctx, `WHERE status = 'downloading'`)
}

type downloadRow struct {
	ID           int64
	UserID       sql.NullString
	BookID       sql.NullInt64
	IndexerID    int64
	Title        string
	Author       sql.NullString
	URL          string
	Format       string
	SizeBytes    sql.NullInt64
	Priority     int
	Status       string
	ProgressPct  int
	LocalPath    sql.NullString
	RetryCount   int
	MaxRetries   int
	ErrorMessage sql.NullString
	StartedAt    sql.NullInt64
	CompletedAt  sql.NullInt64
	CreatedAt    int64
	UpdatedAt    int64
}

func (r downloadRow) toItem() DownloadItem {
	d := DownloadItem{
		ID:           r.ID,
		UserID:       r.UserID.String,
		IndexerID:    r.IndexerID,
		Title:        r.Title,
		Author:       r.Author.String,
		URL:          r.URL,
		Format:       r.Format,
		Priority:     r.Priority,
		Status:       DownloadStatus(r.Status),
		ProgressPct:  r.ProgressPct,
		LocalPath:    r.LocalPath.String,
		RetryCount:   r.RetryCount,
		MaxRetries:   r.MaxRetries,
		ErrorMessage: r.ErrorMessage.String,
		CreatedAt:    time.Unix(r.CreatedAt, 0).UTC(),
		UpdatedAt:    time.Unix(r.UpdatedAt, 0).UTC(),
	}
	if r.BookID.Valid {
		v := r.BookID.Int64
		d.BookID = &v
	}
	if r.SizeBytes.Valid {
		v := r.SizeBytes.Int64
		d.SizeBytes = &v
	}
	if r.StartedAt.Valid {
		t := time.Unix(r.StartedAt.Int64, 0).UTC()
		d.StartedAt = &t
	}
	if r.CompletedAt.Valid {
		t := time.Unix(r.CompletedAt.Int64, 0).UTC()
		d.CompletedAt = &t
	}
	return d
}

const downloadSelectColumns = `id, user_id, book_id, indexer_id, title, author, url, format, size_bytes,
    priority, status, progress_pct, local_path, retry_count, max_retries, error_message,
    started_at, completed_at, created_at, updated_at`

func (s *Store) queryDownloadItems(ctx context.Context, clause string, args ...any) ([]DownloadItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+downloadSelectColumns+` FROM download_queue `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query download_queue: %w", err)
	}
	defer rows.Close()

	var out []DownloadItem
	for rows.Next() {
		var r downloadRow
		if err := rows.Scan(&r.ID, &r.UserID, &r.BookID, &r.IndexerID, &r.Title, &r.Author, &r.URL, &r.Format,
			&r.SizeBytes, &r.Priority, &r.Status, &r.ProgressPct, &r.LocalPath, &r.RetryCount, &r.MaxRetries,
			&r.ErrorMessage, &r.StartedAt, &r.CompletedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r.toItem())
	}
	return out, rows.Err()
}
