package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StartMaintenanceTask inserts a running maintenance_tasks row and
// returns its ID.
func (s *Store) StartMaintenanceTask(ctx context.Context, kind MaintenanceKind, table string) (int64, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO maintenance_tasks (kind, table_name, status, started_at)
VALUES (?,?,'running',?)`, string(kind), nullStr(table), now.Unix())
	if err != nil {
		return 0, fmt.Errorf("start maintenance task: %w", err)
	}
	return res.LastInsertId()
}

// FinishMaintenanceTask records the terminal status and outcome of a
// maintenance task.
func (s *Store) FinishMaintenanceTask(ctx context.Context, taskID int64, status string, rowsAffected, spaceFreed *int64, taskErr string) error {
	now := time.Now()
	var startedAt int64
	if err := s.db.QueryRowContext(ctx, `SELECT started_at FROM maintenance_tasks WHERE task_id = ?`, taskID).Scan(&startedAt); err != nil {
		return err
	}
	duration := now.Sub(time.Unix(startedAt, 0)).Seconds()

	_, err := s.db.ExecContext(ctx, `
UPDATE maintenance_tasks SET status=?, ended_at=?, duration_s=?, rows_affected=?, space_freed_bytes=?, error=?
WHERE task_id = ?`,
		status, now.Unix(), duration, rowsAffected, spaceFreed, nullStr(taskErr), taskID)
	if err != nil {
		return fmt.Errorf("finish maintenance task %d: %w", taskID, err)
	}
	return nil
}

// ListMaintenanceTasks returns the most recent tasks, newest first.
func (s *Store) ListMaintenanceTasks(ctx context.Context, limit int) ([]MaintenanceTask, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT task_id, kind, table_name, status, started_at, ended_at, duration_s, rows_affected, space_freed_bytes, error
FROM maintenance_tasks ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list maintenance tasks: %w", err)
	}
	defer rows.Close()

	var out []MaintenanceTask
	for rows.Next() {
		var t MaintenanceTask
		var kind, status string
		var table, taskErr sql.NullString
		var startedAt int64
		var endedAt sql.NullInt64
		var duration sql.NullFloat64
		var rowsAffected, spaceFreed sql.NullInt64
		if err := rows.Scan(&t.TaskID, &kind, &table, &status, &startedAt, &endedAt, &duration, &rowsAffected, &spaceFreed, &taskErr); err != nil {
			return nil, err
		}
		t.Kind = MaintenanceKind(kind)
		t.Table = table.String
		t.Status = status
		t.StartedAt = time.Unix(startedAt, 0).UTC()
		t.Error = taskErr.String
		if endedAt.Valid {
			tt := time.Unix(endedAt.Int64, 0).UTC()
			t.EndedAt = &tt
		}
		if duration.Valid {
			d := duration.Float64
			t.DurationS = &d
		}
		if rowsAffected.Valid {
			v := rowsAffected.Int64
			t.RowsAffected = &v
		}
		if spaceFreed.Valid {
			v := spaceFreed.Int64
			t.SpaceFreedBytes = &v
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LastSuccessfulIntegrityCheck reports whether the most recent
// integrity_check task finished cleanly (status "completed", the status
// pkg/maintenance records when no violation was found), gating vacuum
// per §4.6 ("vacuum ... require prior integrity_check = ok").
func (s *Store) LastSuccessfulIntegrityCheck(ctx context.Context) (bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `
SELECT status FROM maintenance_tasks WHERE kind = 'integrity_check' ORDER BY started_at DESC LIMIT 1`).Scan(&status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status == "completed", nil
}

// CleanupCounts implements §4.6 cleanup's deletion rules, excluding
// indexer_health (handled by PruneHealthHistory since it needs the
// per-indexer "keep latest" exception). Returns total rows deleted.
func (s *Store) CleanupCounts(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).Unix()
	now := time.Now().Unix()

	var total int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM system_logs WHERE created_at < ? AND level NOT IN ('ERROR','CRITICAL')`, cutoff)
		if err != nil {
			return fmt.Errorf("cleanup system_logs: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n

		res, err = tx.ExecContext(ctx, `DELETE FROM search_cache WHERE expires_at < ?`, now)
		if err != nil {
			return fmt.Errorf("cleanup search_cache: %w", err)
		}
		n, _ = res.RowsAffected()
		total += n

		res, err = tx.ExecContext(ctx,
			`DELETE FROM download_history WHERE created_at < ? AND status = 'completed'`, cutoff)
		if err != nil {
			return fmt.Errorf("cleanup download_history: %w", err)
		}
		n, _ = res.RowsAffected()
		total += n

		res, err = tx.ExecContext(ctx,
			`DELETE FROM maintenance_tasks WHERE started_at < ? AND status = 'completed'`, cutoff)
		if err != nil {
			return fmt.Errorf("cleanup maintenance_tasks: %w", err)
		}
		n, _ = res.RowsAffected()
		total += n
		return nil
	})
	return total, err
}

// DatabaseStats reports the figures the vacuum-threshold decision in
// §4.6 needs: page_count, freelist_pages (for fragmentation%), and the
// file size in bytes (page_count * page_size).
type DatabaseStats struct {
	PageCount      int64
	FreelistPages  int64
	PageSize       int64
	FileSizeBytes  int64
	FragmentationPct float64
}

func (s *Store) DatabaseStats(ctx context.Context) (DatabaseStats, error) {
	var stats DatabaseStats
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&stats.PageCount); err != nil {
		return stats, err
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA freelist_count`).Scan(&stats.FreelistPages); err != nil {
		return stats, err
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&stats.PageSize); err != nil {
		return stats, err
	}
	stats.FileSizeBytes = stats.PageCount * stats.PageSize
	if stats.PageCount > 0 {
		stats.FragmentationPct = float64(stats.FreelistPages) / float64(stats.PageCount) * 100
	}
	return stats, nil
}

// IntegrityCheck runs PRAGMA quick_check and PRAGMA foreign_key_check,
// returning every violation message found (empty slice means clean).
func (s *Store) IntegrityCheck(ctx context.Context) ([]string, error) {
	var violations []string

	rows, err := s.db.QueryContext(ctx, `PRAGMA quick_check`)
	if err != nil {
		return nil, fmt.Errorf("quick_check: %w", err)
	}
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			rows.Close()
			return nil, err
		}
		if msg != "ok" {
			violations = append(violations, "quick_check: "+msg)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fkRows, err := s.db.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return nil, fmt.Errorf("foreign_key_check: %w", err)
	}
	defer fkRows.Close()
	cols, err := fkRows.Columns()
	if err != nil {
		return nil, err
	}
	for fkRows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := fkRows.Scan(ptrs...); err != nil {
			return nil, err
		}
		violations = append(violations, fmt.Sprintf("foreign_key_check: %v", vals))
	}
	return violations, fkRows.Err()
}

// Analyze updates query-planner statistics for the whole DB or one table.
func (s *Store) Analyze(ctx context.Context, table string) error {
	stmt := "ANALYZE"
	if table != "" {
		stmt = "ANALYZE " + table
	}
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

// Reindex rebuilds indexes for the whole DB or one table.
func (s *Store) Reindex(ctx context.Context, table string) error {
	stmt := "REINDEX"
	if table != "" {
		stmt = "REINDEX " + table
	}
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

// Vacuum compacts and defragments the database file in place.
func (s *Store) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `VACUUM`)
	return err
}

// BackupInto writes a consistent snapshot of the database to destPath
// using SQLite's VACUUM INTO, which produces a defragmented copy
// without blocking concurrent readers of the live database.
func (s *Store) BackupInto(ctx context.Context, destPath string) error {
	_, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, destPath)
	if err != nil {
		return fmt.Errorf("vacuum into %q: %w", destPath, err)
	}
	return nil
}
