package maintenance

import (
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/foliofox/foliofox/pkg/catalog"
)

const backupTimestampLayout = "20060102_150405"

// BackupOptions configures the backup task per §4.6/§6.
type BackupOptions struct {
	Dir                string
	EnableCompression  bool
	EnableVerification bool
	RetentionDays      int
}

// Backup streams a consistent snapshot to <dir>/foliofox_backup_<ts>.db
// via VACUUM INTO, optionally gzips it (atomic rename, then removes the
// uncompressed copy), verifies the result with PRAGMA quick_check when
// enabled, and culls backups older than RetentionDays by filename
// timestamp.
func Backup(ctx context.Context, store *catalog.Store, opts BackupOptions) (catalog.MaintenanceTask, error) {
	return runTask(ctx, store, catalog.TaskBackup, "", func(ctx context.Context) (outcome, error) {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return outcome{}, fmt.Errorf("ensure backup dir: %w", err)
		}

		name := fmt.Sprintf("foliofox_backup_%s.db", time.Now().UTC().Format(backupTimestampLayout))
		dest := filepath.Join(opts.Dir, name)

		if err := store.BackupInto(ctx, dest); err != nil {
			return outcome{}, err
		}

		finalPath := dest
		if opts.EnableCompression {
			gzPath, err := compressFile(dest)
			if err != nil {
				return outcome{}, err
			}
			finalPath = gzPath
		}

		if opts.EnableVerification {
			if err := verifyBackup(ctx, finalPath, opts.EnableCompression); err != nil {
				return outcome{}, fmt.Errorf("verify backup %s: %w", finalPath, err)
			}
		}

		culled, freed, err := cullOldBackups(opts.Dir, opts.RetentionDays)
		if err != nil {
			return outcome{}, err
		}

		rows := int64(culled)
		return outcome{status: statusCompleted, rowsAffected: &rows, spaceFreed: &freed}, nil
	})
}

// compressFile gzips src into src+".gz", renaming atomically into
// place once fully written, then removes the uncompressed original.
func compressFile(src string) (string, error) {
	dest := src + ".gz"
	tmp := dest + ".tmp"

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open backup for compression: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create compressed backup: %w", err)
	}

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("compress backup: %w", err)
	}
	if err := gz.Close(); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("close gzip writer: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close compressed backup: %w", err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		return "", fmt.Errorf("rename compressed backup into place: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("remove uncompressed backup: %w", err)
	}
	return dest, nil
}

// verifyBackup opens the backup copy read-only (decompressing to a
// temp file first if gzipped) and requires PRAGMA quick_check = ok.
func verifyBackup(ctx context.Context, path string, compressed bool) error {
	dbPath := path
	if compressed {
		tmp, err := decompressToTemp(path)
		if err != nil {
			return err
		}
		defer os.Remove(tmp)
		dbPath = tmp
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open backup copy: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check`).Scan(&result); err != nil {
		return fmt.Errorf("quick_check backup copy: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("backup copy failed quick_check: %s", result)
	}
	return nil
}

func decompressToTemp(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open compressed backup: %w", err)
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return "", fmt.Errorf("open gzip reader: %w", err)
	}
	defer gz.Close()

	tmp, err := os.CreateTemp("", "foliofox_backup_verify_*.db")
	if err != nil {
		return "", fmt.Errorf("create verify temp file: %w", err)
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, gz); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("decompress backup for verification: %w", err)
	}
	return tmp.Name(), nil
}

// cullOldBackups deletes backups whose filename timestamp is older
// than retentionDays; files with an unparseable name are skipped, per
// §6. Returns the count of files removed and the bytes freed.
func cullOldBackups(dir string, retentionDays int) (int, int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("list backup dir: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	var culled int
	var freed int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ts, ok := parseBackupTimestamp(e.Name())
		if !ok {
			continue
		}
		if ts.After(cutoff) {
			continue
		}
		full := filepath.Join(dir, e.Name())
		if info, err := e.Info(); err == nil {
			freed += info.Size()
		}
		if err := os.Remove(full); err != nil {
			return culled, freed, fmt.Errorf("remove expired backup %s: %w", full, err)
		}
		culled++
	}
	return culled, freed, nil
}

func parseBackupTimestamp(name string) (time.Time, bool) {
	base := strings.TrimSuffix(strings.TrimSuffix(name, ".gz"), ".db")
	const prefix = "foliofox_backup_"
	if !strings.HasPrefix(base, prefix) {
		return time.Time{}, false
	}
	ts, err := time.Parse(backupTimestampLayout, strings.TrimPrefix(base, prefix))
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
