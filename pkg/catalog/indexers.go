package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateIndexer inserts a new indexer and returns its assigned ID.
func (s *Store) CreateIndexer(ctx context.Context, ix Indexer) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO indexers (name, type, base_url, api_key, priority, active, timeout_ms, rate_limit_per_window, window_ms)
VALUES (?,?,?,?,?,?,?,?,?)`,
		ix.Name, string(ix.Type), ix.BaseURL, nullStr(ix.APIKey), ix.Priority, boolToInt(ix.Active),
		ix.TimeoutMS, ix.RateLimitPerWindow, ix.WindowMS)
	if err != nil {
		return 0, fmt.Errorf("insert indexer: %w", err)
	}
	return res.LastInsertId()
}

// GetIndexer loads a single indexer by ID.
func (s *Store) GetIndexer(ctx context.Context, id int64) (*Indexer, error) {
	return s.scanIndexer(s.db.QueryRowContext(ctx, `SELECT `+indexerSelectColumns+` FROM indexers WHERE id = ?`, id))
}

// ListIndexers returns every configured indexer.
func (s *Store) ListIndexers(ctx context.Context) ([]Indexer, error) {
	return s.queryIndexers(ctx, `ORDER BY id`)
}

// ListActiveIndexers returns every indexer with active=1.
func (s *Store) ListActiveIndexers(ctx context.Context) ([]Indexer, error) {
	return s.queryIndexers(ctx, `WHERE active = 1 ORDER BY priority, id`)
}

// UpdateIndexer persists changed scalar fields.
func (s *Store) UpdateIndexer(ctx context.Context, ix Indexer) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE indexers SET name=?, type=?, base_url=?, api_key=?, priority=?, active=?,
    timeout_ms=?, rate_limit_per_window=?, window_ms=? WHERE id=?`,
		ix.Name, string(ix.Type), ix.BaseURL, nullStr(ix.APIKey), ix.Priority, boolToInt(ix.Active),
		ix.TimeoutMS, ix.RateLimitPerWindow, ix.WindowMS, ix.ID)
	if err != nil {
		return fmt.Errorf("update indexer %d: %w", ix.ID, err)
	}
	return nil
}

// DeleteIndexer removes an indexer. The foreign key on download_queue
// is ON DELETE RESTRICT, so this fails with a constraint error while
// any queue row still references the indexer, per §3's lifecycle
// invariant ("deletion forbidden while any download_queue row
// references it").
func (s *Store) DeleteIndexer(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM indexers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete indexer %d: %w", id, err)
	}
	return nil
}

const indexerSelectColumns = `id, name, type, base_url, api_key, priority, active, timeout_ms, rate_limit_per_window, window_ms`

type indexerScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanIndexer(row indexerScanner) (*Indexer, error) {
	var ix Indexer
	var typ string
	var apiKey sql.NullString
	var active int
	if err := row.Scan(&ix.ID, &ix.Name, &typ, &ix.BaseURL, &apiKey, &ix.Priority, &active,
		&ix.TimeoutMS, &ix.RateLimitPerWindow, &ix.WindowMS); err != nil {
		return nil, err
	}
	ix.Type = IndexerType(typ)
	ix.APIKey = apiKey.String
	ix.Active = active != 0
	return &ix, nil
}

func (s *Store) queryIndexers(ctx context.Context, clause string, args ...any) ([]Indexer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+indexerSelectColumns+` FROM indexers `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query indexers: %w", err)
	}
	defer rows.Close()

	var out []Indexer
	for rows.Next() {
		ix, err := s.scanIndexer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ix)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
