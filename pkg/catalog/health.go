package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordHealthSample appends one indexer_health row (§4.3: append-only).
func (s *Store) RecordHealthSample(ctx context.Context, h HealthSample) (int64, error) {
	if h.CheckedAt.IsZero() {
		h.CheckedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO indexer_health (indexer_id, status, response_time_ms, error, checked_at)
VALUES (?,?,?,?,?)`,
		h.IndexerID, string(h.Status), nullIntPtrP(h.ResponseTimeMS), nullStr(h.Error), h.CheckedAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("record health sample: %w", err)
	}
	return res.LastInsertId()
}

// LatestHealth returns the most recent sample for an indexer, or
// sql.ErrNoRows if none has been recorded yet.
func (s *Store) LatestHealth(ctx context.Context, indexerID int64) (*HealthSample, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, indexer_id, status, response_time_ms, error, checked_at
FROM indexer_health WHERE indexer_id = ? ORDER BY checked_at DESC LIMIT 1`, indexerID)
	return scanHealthSample(row)
}

// ConsecutiveFailures counts samples with health_check=fail going back
// from the most recent sample until the first pass, used by §4.3's
// classification table's consecutive_failures input. A "fail" sample
// is one whose status is down or degraded.
func (s *Store) ConsecutiveFailures(ctx context.Context, indexerID int64) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT status FROM indexer_health WHERE indexer_id = ? ORDER BY checked_at DESC LIMIT 1000`, indexerID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return 0, err
		}
		if status == string(HealthDown) || status == string(HealthDegraded) {
			n++
			continue
		}
		break
	}
	return n, rows.Err()
}

// SuccessRate24h computes the fraction of samples in the last 24h
// whose status is not down, per §4.3's classification table.
func (s *Store) SuccessRate24h(ctx context.Context, indexerID int64) (float64, error) {
	since := time.Now().Add(-24 * time.Hour).Unix()
	var total, failed int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM indexer_health WHERE indexer_id = ? AND checked_at >= ?`, indexerID, since,
	).Scan(&total); err != nil {
		return 0, err
	}
	if total == 0 {
		return 1.0, nil
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM indexer_health WHERE indexer_id = ? AND checked_at >= ? AND status = 'down'`,
		indexerID, since,
	).Scan(&failed); err != nil {
		return 0, err
	}
	return float64(total-failed) / float64(total), nil
}

// PruneHealthHistory implements §4.6 cleanup's indexer_health rule:
// delete rows older than 30 days except the latest per indexer.
func (s *Store) PruneHealthHistory(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-30 * 24 * time.Hour).Unix()
	res, err := s.db.ExecContext(ctx, `
DELETE FROM indexer_health
WHERE checked_at < ?
  AND id NOT IN (
      SELECT MAX(id) FROM indexer_health GROUP BY indexer_id
  )`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune indexer_health: %w", err)
	}
	return res.RowsAffected()
}

func scanHealthSample(row *sql.Row) (*HealthSample, error) {
	var h HealthSample
	var status string
	var rt sql.NullInt64
	var errMsg sql.NullString
	var checkedAt int64
	if err := row.Scan(&h.ID, &h.IndexerID, &status, &rt, &errMsg, &checkedAt); err != nil {
		return nil, err
	}
	h.Status = HealthStatus(status)
	if rt.Valid {
		v := int(rt.Int64)
		h.ResponseTimeMS = &v
	}
	h.Error = errMsg.String
	h.CheckedAt = time.Unix(checkedAt, 0).UTC()
	return &h, nil
}

func nullIntPtrP(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
