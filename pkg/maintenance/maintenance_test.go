package maintenance

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foliofox/foliofox/pkg/catalog"
)

func newTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "foliofox-maintenance-test.db")
	s, err := catalog.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIntegrityCheckCompletesOnHealthyDB(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	task, err := IntegrityCheck(ctx, store)
	require.NoError(t, err)
	require.Equal(t, statusCompleted, task.Status)
	require.Equal(t, catalog.TaskIntegrityCheck, task.Kind)
}

func TestCleanupAndAnalyzeComplete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	cleanup, err := Cleanup(ctx, store, 90)
	require.NoError(t, err)
	require.Equal(t, statusCompleted, cleanup.Status)

	analyze, err := Analyze(ctx, store, "")
	require.NoError(t, err)
	require.Equal(t, statusCompleted, analyze.Status)
}

func TestReindexAndVacuumComplete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	reindex, err := Reindex(ctx, store, "")
	require.NoError(t, err)
	require.Equal(t, statusCompleted, reindex.Status)

	vacuum, err := Vacuum(ctx, store)
	require.NoError(t, err)
	require.Equal(t, statusCompleted, vacuum.Status)
	require.NotNil(t, vacuum.SpaceFreedBytes)
}

func TestBackupWritesAndCullsByRetention(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dir := t.TempDir()

	task, err := Backup(ctx, store, BackupOptions{
		Dir: dir, EnableCompression: false, EnableVerification: true, RetentionDays: 14,
	})
	require.NoError(t, err)
	require.Equal(t, statusCompleted, task.Status)
}

func TestBackupCompressesAndVerifies(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	dir := t.TempDir()

	task, err := Backup(ctx, store, BackupOptions{
		Dir: dir, EnableCompression: true, EnableVerification: true, RetentionDays: 14,
	})
	require.NoError(t, err)
	require.Equal(t, statusCompleted, task.Status)
}

func TestBuildReportComputesSuccessRate(t *testing.T) {
	tasks := []catalog.MaintenanceTask{
		{Kind: catalog.TaskIntegrityCheck, Status: statusCompleted},
		{Kind: catalog.TaskCleanup, Status: statusCompleted},
		{Kind: catalog.TaskAnalyze, Status: statusCompleted},
		{Kind: catalog.TaskReindex, Status: statusSkipped},
		{Kind: catalog.TaskVacuum, Status: statusSkipped},
		{Kind: catalog.TaskBackup, Status: statusFailed},
	}
	report := BuildReport(tasks)
	require.Equal(t, 3, report.Completed)
	require.Equal(t, 2, report.Skipped)
	require.Equal(t, 1, report.Failed)
	require.InDelta(t, 3.0/6.0, report.SuccessRate, 0.0001)
}

func TestOrchestratorRunFullSkipsDownstreamOnIntegrityViolation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// Corrupt a foreign key reference so integrity_check reports a
	// violation and every downstream task is skipped. The store enforces
	// foreign keys on every connection, so the dangling row is written
	// through one connection with enforcement switched off.
	conn, err := store.DB().Conn(ctx)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `PRAGMA foreign_keys=OFF`)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx,
		`INSERT INTO book_files (book_id, path, format, size_bytes, created_at) VALUES (999999, '/x.epub', 'epub', 1, 0)`)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `PRAGMA foreign_keys=ON`)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	orch := NewOrchestrator(store, nil, Config{
		AutoVacuumThresholdMB:         100,
		FragmentationThresholdPercent: 25,
		CleanupRetentionDays:          90,
		Backup:                        BackupOptions{Dir: t.TempDir(), RetentionDays: 14},
	})

	report, err := orch.RunFull(ctx)
	require.NoError(t, err)
	require.Equal(t, statusPartial, report.Tasks[0].Status)

	for _, task := range report.Tasks[1:] {
		require.Equal(t, statusSkipped, task.Status, "kind %s should be skipped", task.Kind)
	}
}

func TestOrchestratorRunFullRunsChainOnHealthyDB(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	orch := NewOrchestrator(store, nil, Config{
		AutoVacuumThresholdMB:         100,
		FragmentationThresholdPercent: 25,
		CleanupRetentionDays:          90,
		Backup:                        BackupOptions{Dir: t.TempDir(), RetentionDays: 14},
	})

	report, err := orch.RunFull(ctx)
	require.NoError(t, err)

	byKind := map[catalog.MaintenanceKind]catalog.MaintenanceTask{}
	for _, task := range report.Tasks {
		byKind[task.Kind] = task
	}
	require.Equal(t, statusCompleted, byKind[catalog.TaskIntegrityCheck].Status)
	require.Equal(t, statusCompleted, byKind[catalog.TaskCleanup].Status)
	require.Equal(t, statusCompleted, byKind[catalog.TaskAnalyze].Status)
	require.Equal(t, statusCompleted, byKind[catalog.TaskBackup].Status)
	// A fresh DB is neither fragmented nor oversized, so reindex/vacuum skip.
	require.Equal(t, statusSkipped, byKind[catalog.TaskReindex].Status)
	require.Equal(t, statusSkipped, byKind[catalog.TaskVacuum].Status)
}

func TestOrchestratorRunQuickOnlyRunsIntegrityCheck(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	orch := NewOrchestrator(store, nil, Config{})
	report, err := orch.RunQuick(ctx)
	require.NoError(t, err)
	require.Len(t, report.Tasks, 1)
	require.Equal(t, catalog.TaskIntegrityCheck, report.Tasks[0].Kind)
}
