package queue

import (
	"context"
	"sync"
	"time"

	"github.com/foliofox/foliofox/pkg/breaker"
	"github.com/foliofox/foliofox/pkg/catalog"
	"github.com/foliofox/foliofox/pkg/ferrors"
	"github.com/foliofox/foliofox/pkg/log"
	"github.com/foliofox/foliofox/pkg/metrics"
	"github.com/rs/zerolog"
)

// SchedulerConfig mirrors config.Downloads plus the resource
// thresholds from config.Monitoring; kept separate so this package
// doesn't import pkg/config.
type SchedulerConfig struct {
	MaxConcurrent    int
	BandwidthMbps    float64
	SmartRetry       bool
	DownloadsDir     string
	ChunkSizeBytes   int
	ItemTimeout      time.Duration
	SchedulerTick    time.Duration
	StaleThreshold   time.Duration
	ThrottleInterval time.Duration

	CPUThresholdPercent    float64
	MemoryThresholdPercent float64
	DiskThresholdPercent   float64
}

// Scheduler runs §4.4's scheduling loop: it throttles on host resource
// pressure, starts pending and retry-eligible items as bounded
// concurrent tasks, reclaims stale in-flight items, and periodically
// rebalances priority. It generalizes pkg/worker's ticker-driven
// container sync loop, replacing per-container desired-state diffing
// with priority-ordered queue admission.
type Scheduler struct {
	store    *catalog.Store
	registry *breaker.Registry
	sampler  *ResourceSampler
	task     *Task
	cfg      SchedulerConfig

	mu     sync.Mutex
	active map[int64]context.CancelFunc

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewScheduler builds a Scheduler. sampler may be nil, in which case
// the resource throttle check is skipped entirely (e.g. on platforms
// where /proc is unavailable).
func NewScheduler(store *catalog.Store, registry *breaker.Registry, sampler *ResourceSampler, cfg SchedulerConfig) *Scheduler {
	bandwidth := NewBandwidthLimiter(cfg.BandwidthMbps)
	task := NewTask(store, registry, bandwidth, nil, cfg.DownloadsDir, cfg.ChunkSizeBytes, cfg.ItemTimeout)
	return &Scheduler{
		store:    store,
		registry: registry,
		sampler:  sampler,
		task:     task,
		cfg:      cfg,
		active:   make(map[int64]context.CancelFunc),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Run blocks, ticking the scheduling loop every cfg.SchedulerTick until
// ctx is cancelled or Stop is called.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.doneCh)

	tick := s.cfg.SchedulerTick
	if tick <= 0 {
		tick = 10 * time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	logger := log.WithComponent("scheduler")

	for {
		select {
		case <-ctx.Done():
			s.cancelAll()
			return ctx.Err()
		case <-s.stopCh:
			s.cancelAll()
			return nil
		case <-ticker.C:
			s.scheduleOnce(ctx, logger)
		}
	}
}

// Stop signals Run to exit and cancels every in-flight task.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Scheduler) scheduleOnce(ctx context.Context, logger zerolog.Logger) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulingLatency)

	// Step 1: resource throttle.
	if s.sampler != nil {
		u := s.sampler.Sample()
		if (s.cfg.CPUThresholdPercent > 0 && u.CPUPercent >= s.cfg.CPUThresholdPercent) ||
			(s.cfg.MemoryThresholdPercent > 0 && u.MemoryPercent >= s.cfg.MemoryThresholdPercent) ||
			(s.cfg.DiskThresholdPercent > 0 && u.DiskPercent >= s.cfg.DiskThresholdPercent) {
			logger.Warn().Float64("cpu", u.CPUPercent).Float64("memory", u.MemoryPercent).
				Float64("disk", u.DiskPercent).Msg("resource threshold exceeded, skipping scheduling pass")
			return
		}
	}

	// Step 2: available slots.
	active := s.activeCount()
	available := s.cfg.MaxConcurrent - active
	if available <= 0 {
		s.scanStale(ctx, logger)
		return
	}

	// Step 3: pending items by priority.
	pending, err := s.store.ListPendingForScheduling(ctx, available)
	if err != nil {
		logger.Error().Err(err).Msg("list pending downloads")
	}
	for _, item := range pending {
		if available <= 0 {
			break
		}
		if s.startTask(ctx, item.ID, logger) {
			available--
		}
	}

	// Step 4: retry-eligible items, subject to cooldown + smart retry.
	if available > 0 {
		retryable, err := s.store.ListRetryEligible(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("list retry-eligible downloads")
		}
		for _, item := range retryable {
			if available <= 0 {
				break
			}
			if !s.retryReady(ctx, item, logger) {
				continue
			}
			if err := s.store.ResetToPending(ctx, item.ID); err != nil {
				logger.Error().Err(err).Int64("download_id", item.ID).Msg("reset retry-eligible item to pending")
				continue
			}
			if s.startTask(ctx, item.ID, logger) {
				available--
			}
		}
	}

	// Step 6: reclaim stale in-flight items.
	s.scanStale(ctx, logger)

	// Periodic priority rebalance.
	if err := OptimizePriority(ctx, s.store, s.cfg.MaxConcurrent, s.activeCount()); err != nil {
		logger.Error().Err(err).Msg("optimize priority")
	}
}

// retryReady applies §4.4 step 4's cooldown and smart-retry filter to
// a single retry-eligible item.
func (s *Scheduler) retryReady(ctx context.Context, item catalog.DownloadItem, logger zerolog.Logger) bool {
	reason := ferrors.Classify(item.ErrorMessage)
	if !CooledDown(reason, item.RetryCount, item.UpdatedAt) {
		return false
	}
	if !s.cfg.SmartRetry {
		return true
	}
	since := time.Now().Add(-time.Hour)
	failures, err := s.store.CountFailuresSince(ctx, item.IndexerID, since)
	if err != nil {
		logger.Error().Err(err).Int64("download_id", item.ID).Msg("count recent indexer failures")
		return false
	}
	return !SmartRetrySkip(failures, item.ErrorMessage)
}

func (s *Scheduler) scanStale(ctx context.Context, logger zerolog.Logger) {
	stale, err := s.store.ListStaleDownloading(ctx, s.cfg.StaleThreshold)
	if err != nil {
		logger.Error().Err(err).Msg("list stale downloading items")
		return
	}
	for _, item := range stale {
		s.cancelTask(item.ID)
		if err := s.store.ResetToPending(ctx, item.ID); err != nil {
			logger.Error().Err(err).Int64("download_id", item.ID).Msg("reset stale item to pending")
		}
	}
}

// startTask registers a cancellable goroutine for id, enforcing the
// at-most-one-in-memory-task-per-item invariant via s.active.
func (s *Scheduler) startTask(ctx context.Context, id int64, logger zerolog.Logger) bool {
	s.mu.Lock()
	if _, exists := s.active[id]; exists {
		s.mu.Unlock()
		return false
	}
	taskCtx, cancel := context.WithCancel(ctx)
	s.active[id] = cancel
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.active, id)
			s.mu.Unlock()
			cancel()
		}()
		if _, err := s.task.Run(taskCtx, id); err != nil {
			logger.Error().Err(err).Int64("download_id", id).Msg("download task error")
		}
	}()
	return true
}

func (s *Scheduler) cancelTask(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.active[id]; ok {
		cancel()
		delete(s.active, id)
	}
}

func (s *Scheduler) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cancel := range s.active {
		cancel()
		delete(s.active, id)
	}
}

func (s *Scheduler) activeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
