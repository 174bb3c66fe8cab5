package catalog

import "time"

// Book is a single catalog entry per §3 of the data model.
type Book struct {
	ID              int64
	Title           string
	Subtitle        string
	Description     string
	ISBN10          string
	ISBN13          string
	ASIN            string
	PublicationDate  string
	Publisher       string
	Language        string
	PageCount       int
	RatingAvg       float64
	RatingCount     int
	Series          string
	SeriesPosition  float64
	Authors         []string
	Genres          []string
	Tags            []string
	FileCount       int
	TotalFileSize   int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IndexerType enumerates the backend probe contracts C implements.
type IndexerType string

const (
	IndexerProwlarr IndexerType = "prowlarr"
	IndexerJackett  IndexerType = "jackett"
	IndexerGeneric  IndexerType = "generic"
)

// Indexer is a configured upstream search backend.
type Indexer struct {
	ID                 int64
	Name               string
	Type               IndexerType
	BaseURL            string
	APIKey             string
	Priority           int
	Active             bool
	TimeoutMS          int
	RateLimitPerWindow int
	WindowMS           int
}

// DownloadStatus enumerates a DownloadItem's lifecycle states.
type DownloadStatus string

const (
	StatusPending     DownloadStatus = "pending"
	StatusDownloading DownloadStatus = "downloading"
	StatusCompleted   DownloadStatus = "completed"
	StatusFailed      DownloadStatus = "failed"
	StatusCancelled   DownloadStatus = "cancelled"
	StatusPaused      DownloadStatus = "paused"
)

// DownloadItem is one row of download_queue.
type DownloadItem struct {
	ID           int64
	UserID       string
	BookID       *int64
	IndexerID    int64
	Title        string
	Author       string
	URL          string
	Format       string
	SizeBytes    *int64
	Priority     int
	Status       DownloadStatus
	ProgressPct  int
	LocalPath    string
	RetryCount   int
	MaxRetries   int
	ErrorMessage string
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HealthStatus enumerates the states §4.3's classification table produces.
type HealthStatus string

const (
	HealthHealthy    HealthStatus = "healthy"
	HealthDegraded   HealthStatus = "degraded"
	HealthDown       HealthStatus = "down"
	HealthMaintenance HealthStatus = "maintenance"
	HealthRecovering HealthStatus = "recovering"
)

// HealthSample is one append-only indexer_health row.
type HealthSample struct {
	ID             int64
	IndexerID      int64
	Status         HealthStatus
	ResponseTimeMS *int
	Error          string
	CheckedAt      time.Time
}

// MaintenanceKind enumerates the Maintenance Orchestrator's operations.
type MaintenanceKind string

const (
	TaskVacuum         MaintenanceKind = "vacuum"
	TaskReindex        MaintenanceKind = "reindex"
	TaskAnalyze        MaintenanceKind = "analyze"
	TaskCleanup        MaintenanceKind = "cleanup"
	TaskBackup         MaintenanceKind = "backup"
	TaskIntegrityCheck MaintenanceKind = "integrity_check"
)

// MaintenanceTask is one row of maintenance_tasks.
type MaintenanceTask struct {
	TaskID          int64
	Kind            MaintenanceKind
	Table           string
	Status          string
	StartedAt       time.Time
	EndedAt         *time.Time
	DurationS       *float64
	RowsAffected    *int64
	SpaceFreedBytes *int64
	Error           string
	Details         string
}

// DownloadHistoryEntry is one row of download_history.
type DownloadHistoryEntry struct {
	ID                      int64
	DownloadID              int64
	BookID                  *int64
	IndexerID               *int64
	Title                   string
	Status                  string
	DownloadDurationSeconds *float64
	SizeBytes               *int64
	ErrorMessage            string
	CreatedAt               time.Time
}

// SystemLogEntry is one row of system_logs.
type SystemLogEntry struct {
	ID        int64
	Level     string
	Component string
	Message   string
	Details   string
	CreatedAt time.Time
}
