package maintenance

import (
	"context"

	"github.com/foliofox/foliofox/pkg/catalog"
	"github.com/foliofox/foliofox/pkg/health"
	"github.com/foliofox/foliofox/pkg/log"
)

// Config carries the thresholds and paths §4.6 needs; it mirrors
// config.Maintenance/config.Backup but is kept independent so this
// package doesn't import pkg/config.
type Config struct {
	AutoVacuumThresholdMB         int64
	FragmentationThresholdPercent float64
	CleanupRetentionDays          int
	Backup                        BackupOptions
}

// Orchestrator drives §4.6's dependency-ordered maintenance run:
// integrity_check -> cleanup -> analyze -> [reindex] -> [vacuum] ->
// backup. It generalizes pkg/reconciler's ticker + ordered-step shape
// (reconcileNodes then reconcileContainers each cycle) to a graph
// where a failed step skips everything downstream of it.
type Orchestrator struct {
	store   *catalog.Store
	monitor *health.Monitor
	cfg     Config
}

// NewOrchestrator builds an Orchestrator. monitor may be nil, in which
// case RunQuick's health snapshot is omitted.
func NewOrchestrator(store *catalog.Store, monitor *health.Monitor, cfg Config) *Orchestrator {
	return &Orchestrator{store: store, monitor: monitor, cfg: cfg}
}

// RunFull walks the full §4.6 dependency graph, marking any task whose
// dependency did not complete as skipped rather than attempting it.
func (o *Orchestrator) RunFull(ctx context.Context) (*Report, error) {
	logger := log.WithComponent("maintenance_orchestrator")
	var tasks []catalog.MaintenanceTask

	integrity, err := IntegrityCheck(ctx, o.store)
	tasks = append(tasks, integrity)
	if err != nil {
		logger.Error().Err(err).Msg("integrity_check failed")
	}
	integrityOK := integrity.Status == statusCompleted

	cleanupOK := false
	if integrityOK {
		cleanup, err := Cleanup(ctx, o.store, o.cfg.CleanupRetentionDays)
		tasks = append(tasks, cleanup)
		if err != nil {
			logger.Error().Err(err).Msg("cleanup failed")
		}
		cleanupOK = cleanup.Status == statusCompleted
	} else {
		tasks = append(tasks, skippedTask(catalog.TaskCleanup, "integrity_check did not complete"))
	}

	analyzeOK := false
	if cleanupOK {
		analyze, err := Analyze(ctx, o.store, "")
		tasks = append(tasks, analyze)
		if err != nil {
			logger.Error().Err(err).Msg("analyze failed")
		}
		analyzeOK = analyze.Status == statusCompleted
	} else {
		tasks = append(tasks, skippedTask(catalog.TaskAnalyze, "cleanup did not complete"))
	}

	stats, statsErr := o.store.DatabaseStats(ctx)
	if statsErr != nil {
		logger.Error().Err(statsErr).Msg("read database stats")
	}
	fragmented := statsErr == nil && stats.FragmentationPct > o.cfg.FragmentationThresholdPercent
	oversized := statsErr == nil && stats.FileSizeBytes > o.cfg.AutoVacuumThresholdMB*1024*1024

	if analyzeOK && fragmented {
		reindex, err := Reindex(ctx, o.store, "")
		tasks = append(tasks, reindex)
		if err != nil {
			logger.Error().Err(err).Msg("reindex failed")
		}
	} else if !analyzeOK {
		tasks = append(tasks, skippedTask(catalog.TaskReindex, "analyze did not complete"))
	} else {
		tasks = append(tasks, skippedTask(catalog.TaskReindex, "fragmentation below threshold"))
	}

	// Vacuum's prerequisite is integrity_check = ok specifically (§4.6),
	// not merely that analyze ran.
	if analyzeOK && integrityOK && (fragmented || oversized) {
		vacuum, err := Vacuum(ctx, o.store)
		tasks = append(tasks, vacuum)
		if err != nil {
			logger.Error().Err(err).Msg("vacuum failed")
		}
	} else if !integrityOK {
		tasks = append(tasks, skippedTask(catalog.TaskVacuum, "integrity_check did not complete ok"))
	} else if !analyzeOK {
		tasks = append(tasks, skippedTask(catalog.TaskVacuum, "analyze did not complete"))
	} else {
		tasks = append(tasks, skippedTask(catalog.TaskVacuum, "size and fragmentation below thresholds"))
	}

	if analyzeOK {
		backup, err := Backup(ctx, o.store, o.cfg.Backup)
		tasks = append(tasks, backup)
		if err != nil {
			logger.Error().Err(err).Msg("backup failed")
		}
	} else {
		tasks = append(tasks, skippedTask(catalog.TaskBackup, "analyze did not complete"))
	}

	report := BuildReport(tasks)
	logger.Info().Float64("success_rate", report.SuccessRate).Msg("maintenance run complete")
	return report, nil
}

// RunQuick executes only integrity_check plus a health snapshot, per
// §4.6's quick-run definition.
func (o *Orchestrator) RunQuick(ctx context.Context) (*Report, error) {
	integrity, err := IntegrityCheck(ctx, o.store)
	if err != nil {
		log.WithComponent("maintenance_orchestrator").Error().Err(err).Msg("integrity_check failed")
	}

	tasks := []catalog.MaintenanceTask{integrity}
	report := BuildReport(tasks)

	if o.monitor != nil {
		indexers, err := o.store.ListIndexers(ctx)
		if err == nil {
			snapshot := make([]IndexerHealthSnapshot, 0, len(indexers))
			for _, ix := range indexers {
				latest, err := o.store.LatestHealth(ctx, ix.ID)
				if err != nil {
					continue
				}
				snapshot = append(snapshot, IndexerHealthSnapshot{
					IndexerID: ix.ID,
					Name:      ix.Name,
					Status:    latest.Status,
					CheckedAt: latest.CheckedAt,
				})
			}
			report.HealthSnapshot = snapshot
		}
	}

	return report, nil
}

func skippedTask(kind catalog.MaintenanceKind, reason string) catalog.MaintenanceTask {
	return catalog.MaintenanceTask{Kind: kind, Status: statusSkipped, Error: reason}
}
