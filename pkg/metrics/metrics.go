package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Catalog metrics
	BooksTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "foliofox_books_total",
			Help: "Total number of books in the catalog",
		},
	)

	IndexersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "foliofox_indexers_total",
			Help: "Total number of configured indexers by active state",
		},
		[]string{"active"},
	)

	// Circuit breaker / load balancer metrics
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "foliofox_breaker_state",
			Help: "Circuit breaker state per indexer (0=closed, 1=open, 2=half_open)",
		},
		[]string{"indexer_id"},
	)

	BreakerTripsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foliofox_breaker_trips_total",
			Help: "Total number of circuit breaker trips to OPEN by indexer",
		},
		[]string{"indexer_id"},
	)

	SelectorRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foliofox_selector_requests_total",
			Help: "Total number of indexer selections by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	// Indexer health metrics
	IndexerHealthChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foliofox_indexer_health_checks_total",
			Help: "Total number of health probes by indexer and result",
		},
		[]string{"indexer_id", "result"},
	)

	IndexerHealthCheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foliofox_indexer_health_check_duration_seconds",
			Help:    "Duration of indexer health probes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"indexer_id"},
	)

	FailoverEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foliofox_failover_events_total",
			Help: "Total number of failover events by reason",
		},
		[]string{"reason"},
	)

	RecoveryEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "foliofox_recovery_events_total",
			Help: "Total number of indexer recovery events",
		},
	)

	// Download queue metrics
	DownloadsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "foliofox_downloads_active",
			Help: "Number of downloads currently in flight",
		},
	)

	DownloadsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "foliofox_downloads_completed_total",
			Help: "Total number of downloads completed successfully",
		},
	)

	DownloadsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foliofox_downloads_failed_total",
			Help: "Total number of failed downloads by classified reason",
		},
		[]string{"reason"},
	)

	DownloadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "foliofox_download_duration_seconds",
			Help:    "Time taken to complete a download in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "foliofox_scheduling_latency_seconds",
			Help:    "Time taken for one scheduler cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	BandwidthTokensAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "foliofox_bandwidth_tokens_available",
			Help: "Tokens currently available in the bandwidth throttle bucket",
		},
	)

	// Dedup metrics
	DedupScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "foliofox_dedup_scan_duration_seconds",
			Help:    "Time taken for a deduplication scan in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
		},
	)

	DedupMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foliofox_dedup_matches_total",
			Help: "Total number of duplicate matches found by kind",
		},
		[]string{"kind"},
	)

	DedupMergesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "foliofox_dedup_merges_total",
			Help: "Total number of duplicate merges applied",
		},
	)

	// Maintenance metrics
	MaintenanceTaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foliofox_maintenance_task_duration_seconds",
			Help:    "Duration of a maintenance task by kind",
			Buckets: []float64{0.1, 1, 5, 15, 30, 60, 300, 900, 3600},
		},
		[]string{"kind"},
	)

	MaintenanceTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foliofox_maintenance_tasks_total",
			Help: "Total number of maintenance tasks by kind and status",
		},
		[]string{"kind", "status"},
	)

	MaintenanceSpaceFreedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "foliofox_maintenance_space_freed_bytes_total",
			Help: "Total bytes freed by vacuum operations",
		},
	)
)

func init() {
	prometheus.MustRegister(
		BooksTotal,
		IndexersTotal,
		BreakerState,
		BreakerTripsTotal,
		SelectorRequestsTotal,
		IndexerHealthChecksTotal,
		IndexerHealthCheckDuration,
		FailoverEventsTotal,
		RecoveryEventsTotal,
		DownloadsActive,
		DownloadsCompletedTotal,
		DownloadsFailedTotal,
		DownloadDuration,
		SchedulingLatency,
		BandwidthTokensAvailable,
		DedupScanDuration,
		DedupMatchesTotal,
		DedupMergesTotal,
		MaintenanceTaskDuration,
		MaintenanceTasksTotal,
		MaintenanceSpaceFreedBytes,
	)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
