package catalog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/foliofox/foliofox/pkg/ferrors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store is the Catalog Store (A). It owns the single *sql.DB handle
// every other component persists through.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path,
// configures WAL mode and foreign-key enforcement, and applies any
// outstanding schema migrations.
func Open(path string) (*Store, error) {
	// foreign_keys and busy_timeout are per-connection settings, so they
	// are passed as DSN pragmas that the driver applies to every pooled
	// connection it opens.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, ferrors.New(ferrors.ConfigError, fmt.Errorf("open database %q: %w", path, err))
	}
	// WAL mode lets many readers proceed concurrently with the single
	// writer SQLite itself serializes; busy_timeout absorbs the brief
	// contention window instead of surfacing SQLITE_BUSY to callers.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, ferrors.New(ferrors.ConfigError, fmt.Errorf("configure database: %w", err))
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for components that need read-only access
// patterns (e.g. search queries) not worth adding a wrapper for.
func (s *Store) DB() *sql.DB { return s.db }

type migrationRecord struct {
	version  int
	filename string
	checksum string
}

// migrate applies every embedded migration not yet recorded in
// schema_versions, and re-verifies the checksum of every migration
// already applied, refusing to proceed on any mismatch.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS schema_versions (
    version    INTEGER PRIMARY KEY,
    filename   TEXT NOT NULL,
    checksum   TEXT NOT NULL,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	applied := make(map[int]migrationRecord)
	rows, err := s.db.Query(`SELECT version, filename, checksum FROM schema_versions`)
	if err != nil {
		return fmt.Errorf("read schema_versions: %w", err)
	}
	for rows.Next() {
		var r migrationRecord
		if err := rows.Scan(&r.version, &r.filename, &r.checksum); err != nil {
			rows.Close()
			return err
		}
		applied[r.version] = r
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, name := range names {
		version, err := migrationVersion(name)
		if err != nil {
			return err
		}
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		sum := sha256.Sum256(data)
		checksum := hex.EncodeToString(sum[:])

		if rec, ok := applied[version]; ok {
			if rec.checksum != checksum {
				return ferrors.New(ferrors.SchemaMismatch, fmt.Errorf(
					"migration %s (version %d) checksum mismatch: expected %s, got %s",
					name, version, rec.checksum, checksum))
			}
			continue
		}

		if err := s.applyMigration(version, name, string(data), checksum); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyMigration(version int, name, sqlText, checksum string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(sqlText); err != nil {
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO schema_versions (version, filename, checksum, applied_at) VALUES (?, ?, ?, ?)`,
		version, name, checksum, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}

// migrationVersion parses the numeric prefix of a migration filename,
// e.g. "0001_init.sql" -> 1.
func migrationVersion(name string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(name, "%04d_", &version); err != nil {
		return 0, fmt.Errorf("migration filename %q missing numeric prefix: %w", name, err)
	}
	return version, nil
}

// WithTx runs fn inside a transaction, committing on nil error and
// rolling back otherwise. Every multi-statement write in the core goes
// through this instead of ad-hoc Begin/Commit pairs.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Exclusive acquires SQLite's exclusive locking mode for the duration
// of fn, used by the Maintenance Orchestrator's destructive operations
// (vacuum, reindex) so no other writer can interleave. The lock is
// released after fn returns by resetting locking_mode back to NORMAL;
// SQLite only drops the lock at the connection's next database access
// after that reset, so the connection then reads sqlite_master once.
func (s *Store) Exclusive(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `PRAGMA locking_mode=EXCLUSIVE;`); err != nil {
		return fmt.Errorf("set exclusive locking mode: %w", err)
	}
	defer func() {
		conn.ExecContext(context.Background(), `PRAGMA locking_mode=NORMAL;`)
		conn.ExecContext(context.Background(), `SELECT count(*) FROM sqlite_master;`)
	}()

	return fn(conn)
}
