package maintenance

import (
	"time"

	"github.com/foliofox/foliofox/pkg/catalog"
)

// IndexerHealthSnapshot is one indexer's most recent health sample, as
// surfaced by a quick maintenance run instead of a full probe cycle.
type IndexerHealthSnapshot struct {
	IndexerID int64
	Name      string
	Status    catalog.HealthStatus
	CheckedAt time.Time
}

// Report aggregates one orchestrator run's tasks, per spec.md §6.
type Report struct {
	Tasks          []catalog.MaintenanceTask
	Completed      int
	Failed         int
	Skipped        int
	Partial        int
	SuccessRate    float64
	HealthSnapshot []IndexerHealthSnapshot
}

// BuildReport computes success_rate = completed / (completed + failed +
// partial + skipped); a partial integrity_check is tallied in Partial,
// apart from Failed, and like a skip counts as not completed.
func BuildReport(tasks []catalog.MaintenanceTask) *Report {
	r := &Report{Tasks: tasks}
	for _, t := range tasks {
		switch t.Status {
		case statusCompleted:
			r.Completed++
		case statusSkipped:
			r.Skipped++
		case statusPartial:
			r.Partial++
		default:
			r.Failed++
		}
	}

	denom := r.Completed + r.Failed + r.Partial + r.Skipped
	if denom > 0 {
		r.SuccessRate = float64(r.Completed) / float64(denom)
	}
	return r
}
