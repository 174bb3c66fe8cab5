/*
Package config holds FolioFox's runtime configuration tree and the
defaults named throughout the specification. Loading is intentionally
minimal: a single YAML file unmarshaled into Config, with
DefaultConfig filling in anything the file omits. A full operator CLI
(subcommands, per-feature flags) is out of scope; cmd/foliofoxd only
needs enough configuration to boot the core.
*/
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Downloads controls the Download Queue Engine (D).
type Downloads struct {
	MaxConcurrent       int     `yaml:"max_concurrent"`
	BandwidthLimitMbps  float64 `yaml:"bandwidth_limit_mbps"`
	RetryCount          int     `yaml:"retry_count"`
	SmartRetry          bool    `yaml:"smart_retry"`
	DownloadsDir        string  `yaml:"downloads_dir"`
	ChunkSizeBytes      int     `yaml:"chunk_size_bytes"`
	ItemTimeout         time.Duration `yaml:"item_timeout"`
	SchedulerTick       time.Duration `yaml:"scheduler_tick"`
	StaleThreshold       time.Duration `yaml:"stale_threshold"`
	ThrottleInterval     time.Duration `yaml:"throttle_interval"`
}

// Failover controls the Indexer Health Monitor and Circuit Breaker (B, C).
type Failover struct {
	HealthCheckInterval  time.Duration `yaml:"health_check_interval"`
	MaxConcurrentChecks  int           `yaml:"max_concurrent_checks"`
	FailureThreshold     int           `yaml:"failure_threshold"`
	RecoveryTimeout      time.Duration `yaml:"recovery_timeout"`
	MaxRecoveryAttempts  int           `yaml:"max_recovery_attempts"`
	Strategy             string        `yaml:"strategy"`
}

// Maintenance controls the Maintenance Orchestrator (F).
type Maintenance struct {
	AutoVacuumThresholdMB        int64   `yaml:"auto_vacuum_threshold_mb"`
	FragmentationThresholdPercent float64 `yaml:"fragmentation_threshold_percent"`
	CleanupRetentionDays         int     `yaml:"cleanup_retention_days"`
}

// Backup controls §4.6's backup task.
type Backup struct {
	Dir                string `yaml:"dir"`
	EnableCompression  bool   `yaml:"enable_compression"`
	EnableVerification bool   `yaml:"enable_verification"`
	RetentionDays      int    `yaml:"retention_days"`
}

// ResourceThresholds gates the queue scheduler's throttle (§4.4 step 1).
type ResourceThresholds struct {
	CPUPercent    float64 `yaml:"cpu_percent"`
	MemoryPercent float64 `yaml:"memory_percent"`
	DiskPercent   float64 `yaml:"disk_percent"`
}

// Monitoring carries the resource thresholds consumed by D.
type Monitoring struct {
	ResourceThresholds ResourceThresholds `yaml:"resource_thresholds"`
}

// Config is the full configuration tree consumed by the core.
type Config struct {
	DatabasePath string      `yaml:"database_path"`
	Downloads    Downloads   `yaml:"downloads"`
	Failover     Failover    `yaml:"failover"`
	Maintenance  Maintenance `yaml:"maintenance"`
	Backup       Backup      `yaml:"backup"`
	Monitoring   Monitoring  `yaml:"monitoring"`
}

// DefaultConfig returns a Config populated with every default named in
// the specification.
func DefaultConfig() Config {
	return Config{
		DatabasePath: "foliofox.db",
		Downloads: Downloads{
			MaxConcurrent:      3,
			BandwidthLimitMbps: 0, // 0 = unlimited
			RetryCount:         3,
			SmartRetry:         true,
			DownloadsDir:       "downloads",
			ChunkSizeBytes:     8 * 1024,
			ItemTimeout:        300 * time.Second,
			SchedulerTick:      10 * time.Second,
			StaleThreshold:     60 * time.Minute,
			ThrottleInterval:   30 * time.Second,
		},
		Failover: Failover{
			HealthCheckInterval: 30 * time.Second,
			MaxConcurrentChecks: 5,
			FailureThreshold:    5,
			RecoveryTimeout:     60 * time.Second,
			MaxRecoveryAttempts: 5,
			Strategy:            "intelligent",
		},
		Maintenance: Maintenance{
			AutoVacuumThresholdMB:         100,
			FragmentationThresholdPercent: 25,
			CleanupRetentionDays:          90,
		},
		Backup: Backup{
			Dir:                "backups",
			EnableCompression:  true,
			EnableVerification: true,
			RetentionDays:      14,
		},
		Monitoring: Monitoring{
			ResourceThresholds: ResourceThresholds{
				CPUPercent:    90,
				MemoryPercent: 90,
				DiskPercent:   95,
			},
		},
	}
}

// LoadFile reads a YAML config file and overlays it onto the defaults.
// Config is decoded directly on top of DefaultConfig's value, so keys
// absent from the file keep their defaults, while a key the file sets
// replaces the default even when its value is zero.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &cfg, nil
}
