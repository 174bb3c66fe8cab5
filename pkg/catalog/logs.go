package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LogSystem inserts a system_logs row. Used by the dedup merge
// transaction to leave a before/after audit trail, and by any
// component that wants its events queryable alongside catalog data.
func (s *Store) LogSystem(ctx context.Context, level, component, message, details string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO system_logs (level, component, message, details, created_at)
VALUES (?,?,?,?,?)`, level, nullStr(component), message, nullStr(details), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("log system event: %w", err)
	}
	return nil
}

// RecentSystemLogs returns the most recent log entries, newest first.
func (s *Store) RecentSystemLogs(ctx context.Context, limit int) ([]SystemLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, level, component, message, details, created_at
FROM system_logs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query system_logs: %w", err)
	}
	defer rows.Close()

	var out []SystemLogEntry
	for rows.Next() {
		var e SystemLogEntry
		var component, details sql.NullString
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Level, &component, &e.Message, &details, &createdAt); err != nil {
			return nil, err
		}
		e.Component = component.String
		e.Details = details.String
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
