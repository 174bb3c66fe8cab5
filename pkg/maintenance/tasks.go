package maintenance

import (
	"context"
	"database/sql"
	"strings"

	"github.com/foliofox/foliofox/pkg/catalog"
	"github.com/foliofox/foliofox/pkg/log"
	"github.com/foliofox/foliofox/pkg/metrics"
)

const (
	statusCompleted = "completed"
	statusFailed    = "failed"
	statusPartial   = "partial"
	statusSkipped   = "skipped"
)

// outcome is what a single task body reports back to runTask once its
// work is done.
type outcome struct {
	status       string
	rowsAffected *int64
	spaceFreed   *int64
	errMsg       string
}

// runTask wraps §4.6's "each idempotent and individually invocable"
// requirement: it starts a maintenance_tasks row, runs body, finishes
// the row with body's outcome, and records the kind/status metrics
// every task shares.
func runTask(ctx context.Context, store *catalog.Store, kind catalog.MaintenanceKind, table string,
	body func(ctx context.Context) (outcome, error)) (catalog.MaintenanceTask, error) {
	logger := log.WithComponent("maintenance")
	timer := metrics.NewTimer()

	taskID, err := store.StartMaintenanceTask(ctx, kind, table)
	if err != nil {
		return catalog.MaintenanceTask{}, err
	}

	o, bodyErr := body(ctx)
	if bodyErr != nil {
		o = outcome{status: statusFailed, errMsg: bodyErr.Error()}
	}

	if err := store.FinishMaintenanceTask(ctx, taskID, o.status, o.rowsAffected, o.spaceFreed, o.errMsg); err != nil {
		return catalog.MaintenanceTask{}, err
	}

	timer.ObserveDurationVec(metrics.MaintenanceTaskDuration, string(kind))
	metrics.MaintenanceTasksTotal.WithLabelValues(string(kind), o.status).Inc()
	if o.spaceFreed != nil {
		metrics.MaintenanceSpaceFreedBytes.Add(float64(*o.spaceFreed))
	}

	duration := timer.Duration().Seconds()
	logger.Info().Str("kind", string(kind)).Str("status", o.status).
		Float64("duration_s", duration).Msg("maintenance task finished")

	task := catalog.MaintenanceTask{
		TaskID:          taskID,
		Kind:            kind,
		Table:           table,
		Status:          o.status,
		RowsAffected:    o.rowsAffected,
		SpaceFreedBytes: o.spaceFreed,
		Error:           o.errMsg,
		DurationS:       &duration,
	}
	return task, bodyErr
}

// IntegrityCheck runs PRAGMA quick_check and foreign_key_check; any
// violation marks the task partial, per §4.6, which blocks every
// downstream destructive task in the dependency graph.
func IntegrityCheck(ctx context.Context, store *catalog.Store) (catalog.MaintenanceTask, error) {
	return runTask(ctx, store, catalog.TaskIntegrityCheck, "", func(ctx context.Context) (outcome, error) {
		violations, err := store.IntegrityCheck(ctx)
		if err != nil {
			return outcome{}, err
		}
		if len(violations) > 0 {
			return outcome{status: statusPartial, errMsg: strings.Join(violations, "; ")}, nil
		}
		return outcome{status: statusCompleted}, nil
	})
}

// Cleanup deletes expired rows per §4.6's retention rules, including
// the indexer_health keep-latest exception handled separately by
// PruneHealthHistory.
func Cleanup(ctx context.Context, store *catalog.Store, retentionDays int) (catalog.MaintenanceTask, error) {
	return runTask(ctx, store, catalog.TaskCleanup, "", func(ctx context.Context) (outcome, error) {
		deleted, err := store.CleanupCounts(ctx, retentionDays)
		if err != nil {
			return outcome{}, err
		}
		pruned, err := store.PruneHealthHistory(ctx)
		if err != nil {
			return outcome{}, err
		}
		total := deleted + pruned
		return outcome{status: statusCompleted, rowsAffected: &total}, nil
	})
}

// Analyze updates query-planner statistics for the whole DB or one table.
func Analyze(ctx context.Context, store *catalog.Store, table string) (catalog.MaintenanceTask, error) {
	return runTask(ctx, store, catalog.TaskAnalyze, table, func(ctx context.Context) (outcome, error) {
		if err := store.Analyze(ctx, table); err != nil {
			return outcome{}, err
		}
		return outcome{status: statusCompleted}, nil
	})
}

// Reindex rebuilds indexes for the whole DB or one table under an
// exclusive session, since concurrent writers must not interleave
// with an index rebuild.
func Reindex(ctx context.Context, store *catalog.Store, table string) (catalog.MaintenanceTask, error) {
	return runTask(ctx, store, catalog.TaskReindex, table, func(ctx context.Context) (outcome, error) {
		err := store.Exclusive(ctx, func(conn *sql.Conn) error {
			stmt := "REINDEX"
			if table != "" {
				stmt = "REINDEX " + table
			}
			_, err := conn.ExecContext(ctx, stmt)
			return err
		})
		if err != nil {
			return outcome{}, err
		}
		return outcome{status: statusCompleted}, nil
	})
}

// Vacuum compacts and defragments the database file in place under an
// exclusive session, recording bytes freed.
func Vacuum(ctx context.Context, store *catalog.Store) (catalog.MaintenanceTask, error) {
	return runTask(ctx, store, catalog.TaskVacuum, "", func(ctx context.Context) (outcome, error) {
		before, err := store.DatabaseStats(ctx)
		if err != nil {
			return outcome{}, err
		}

		err = store.Exclusive(ctx, func(conn *sql.Conn) error {
			_, err := conn.ExecContext(ctx, `VACUUM`)
			return err
		})
		if err != nil {
			return outcome{}, err
		}

		after, err := store.DatabaseStats(ctx)
		if err != nil {
			return outcome{}, err
		}
		freed := before.FileSizeBytes - after.FileSizeBytes
		if freed < 0 {
			freed = 0
		}
		return outcome{status: statusCompleted, spaceFreed: &freed}, nil
	})
}
