package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/foliofox/foliofox/pkg/breaker"
	"github.com/foliofox/foliofox/pkg/catalog"
	"github.com/foliofox/foliofox/pkg/config"
	"github.com/foliofox/foliofox/pkg/health"
	"github.com/foliofox/foliofox/pkg/log"
	"github.com/foliofox/foliofox/pkg/maintenance"
	"github.com/foliofox/foliofox/pkg/metrics"
	"github.com/foliofox/foliofox/pkg/queue"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "foliofoxd",
	Short:   "foliofoxd runs FolioFox's download queue, indexer health monitor, and maintenance orchestrator",
	Version: Version,
	RunE:    runServe,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("foliofoxd version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.Flags().String("config", "", "Path to foliofox.yaml (defaults baked in if omitted)")
	rootCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the Prometheus /metrics endpoint")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

// runServe boots the core per §5: catalog store, circuit breaker
// registry, health monitor, download scheduler, and maintenance
// orchestrator, each running its own loop until a shutdown signal
// arrives.
func runServe(cmd *cobra.Command, args []string) error {
	logger := log.WithComponent("foliofoxd")

	configPath, _ := cmd.Flags().GetString("config")
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = *loaded
	}

	store, err := catalog.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()
	logger.Info().Str("path", cfg.DatabasePath).Msg("catalog opened")

	registry := breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.Failover.FailureThreshold,
		RecoveryTimeout:  cfg.Failover.RecoveryTimeout,
	})

	monitor := health.NewMonitor(store, registry, health.MonitorConfig{
		Interval:            cfg.Failover.HealthCheckInterval,
		MaxConcurrentChecks: cfg.Failover.MaxConcurrentChecks,
		FailureThreshold:    cfg.Failover.FailureThreshold,
		MaxRecoveryAttempts: cfg.Failover.MaxRecoveryAttempts,
	}, nil)

	sampler, err := queue.NewResourceSampler(cfg.Downloads.DownloadsDir)
	if err != nil {
		return fmt.Errorf("open resource sampler: %w", err)
	}
	scheduler := queue.NewScheduler(store, registry, sampler, queue.SchedulerConfig{
		MaxConcurrent:          cfg.Downloads.MaxConcurrent,
		BandwidthMbps:          cfg.Downloads.BandwidthLimitMbps,
		SmartRetry:             cfg.Downloads.SmartRetry,
		DownloadsDir:           cfg.Downloads.DownloadsDir,
		ChunkSizeBytes:         cfg.Downloads.ChunkSizeBytes,
		ItemTimeout:            cfg.Downloads.ItemTimeout,
		SchedulerTick:          cfg.Downloads.SchedulerTick,
		StaleThreshold:         cfg.Downloads.StaleThreshold,
		ThrottleInterval:       cfg.Downloads.ThrottleInterval,
		CPUThresholdPercent:    cfg.Monitoring.ResourceThresholds.CPUPercent,
		MemoryThresholdPercent: cfg.Monitoring.ResourceThresholds.MemoryPercent,
		DiskThresholdPercent:   cfg.Monitoring.ResourceThresholds.DiskPercent,
	})

	orchestrator := maintenance.NewOrchestrator(store, monitor, maintenance.Config{
		AutoVacuumThresholdMB:         cfg.Maintenance.AutoVacuumThresholdMB,
		FragmentationThresholdPercent: cfg.Maintenance.FragmentationThresholdPercent,
		CleanupRetentionDays:          cfg.Maintenance.CleanupRetentionDays,
		Backup: maintenance.BackupOptions{
			Dir:                cfg.Backup.Dir,
			EnableCompression:  cfg.Backup.EnableCompression,
			EnableVerification: cfg.Backup.EnableVerification,
			RetentionDays:      cfg.Backup.RetentionDays,
		},
	})

	ctx, cancel := context.WithCancel(context.Background())

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	logger.Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")

	var wg sync.WaitGroup
	runLoop := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && err != context.Canceled {
				logger.Error().Err(err).Str("component", name).Msg("component stopped with error")
			}
		}()
	}

	runLoop("health_monitor", monitor.Run)
	runLoop("scheduler", scheduler.Run)
	runLoop("maintenance", func(ctx context.Context) error {
		return runMaintenanceLoop(ctx, orchestrator, cfg)
	})

	logger.Info().Msg("foliofoxd running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	cancel()
	_ = metricsSrv.Shutdown(context.Background())
	wg.Wait()
	logger.Info().Msg("shutdown complete")
	return nil
}
