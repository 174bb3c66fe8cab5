package health

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/foliofox/foliofox/pkg/breaker"
	"github.com/foliofox/foliofox/pkg/catalog"
	"github.com/foliofox/foliofox/pkg/log"
	"github.com/foliofox/foliofox/pkg/metrics"
	"github.com/rs/zerolog"
)

// MonitorConfig mirrors config.Failover; kept separate so this package
// doesn't import pkg/config.
type MonitorConfig struct {
	Interval            time.Duration
	MaxConcurrentChecks int
	FailureThreshold    int
	MaxRecoveryAttempts int
}

// Monitor runs §4.3's per-indexer probe loop: a bounded-concurrency
// tick over every active indexer, classifying each result and driving
// failover/recovery transitions against the circuit breaker registry.
//
// It generalizes pkg/worker's ticker + per-target-goroutine shape,
// replacing the unbounded goroutine-per-container spawn with a
// semaphore bounding concurrent probes to MaxConcurrentChecks.
type Monitor struct {
	store    *catalog.Store
	registry *breaker.Registry
	cfg      MonitorConfig
	client   *http.Client
	logger   zerolog.Logger

	mu               sync.Mutex
	failedIndexers   map[int64]bool
	recoveryAttempts map[int64][]time.Time
}

// NewMonitor creates a Monitor. client may be nil, in which case a
// default client with no overall timeout is used (per-probe timeouts
// come from each indexer's TimeoutMS).
func NewMonitor(store *catalog.Store, registry *breaker.Registry, cfg MonitorConfig, client *http.Client) *Monitor {
	if client == nil {
		client = &http.Client{}
	}
	return &Monitor{
		store:            store,
		registry:         registry,
		cfg:              cfg,
		client:           client,
		logger:           log.WithComponent("health_monitor"),
		failedIndexers:   make(map[int64]bool),
		recoveryAttempts: make(map[int64][]time.Time),
	}
}

// Run ticks every cfg.Interval until ctx is cancelled, probing an
// initial round immediately.
func (m *Monitor) Run(ctx context.Context) error {
	m.tick(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	indexers, err := m.store.ListActiveIndexers(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("list active indexers")
		return
	}

	sem := make(chan struct{}, m.cfg.MaxConcurrentChecks)
	var wg sync.WaitGroup
	for _, ix := range indexers {
		ix := ix
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			m.checkOne(ctx, ix)
		}()
	}
	wg.Wait()
}

func (m *Monitor) checkOne(ctx context.Context, ix catalog.Indexer) {
	logger := log.WithIndexerID(strconv.FormatInt(ix.ID, 10))
	timer := metrics.NewTimer()

	finish := m.registry.BeginRequest(ix.ID)
	responseMS, probeErr := Probe(ctx, ix, m.client)
	finish(probeErr == nil, responseMS)

	priorFailures, err := m.store.ConsecutiveFailures(ctx, ix.ID)
	if err != nil {
		logger.Error().Err(err).Msg("load consecutive failures")
		return
	}
	successRate, err := m.store.SuccessRate24h(ctx, ix.ID)
	if err != nil {
		logger.Error().Err(err).Msg("load 24h success rate")
		return
	}

	status := classify(probeErr == nil, priorFailures, m.cfg.FailureThreshold, successRate)

	sample := catalog.HealthSample{IndexerID: ix.ID, Status: status, CheckedAt: time.Now()}
	result := "ok"
	if probeErr != nil {
		sample.Error = probeErr.Error()
		result = "fail"
	} else {
		rt := responseMS
		sample.ResponseTimeMS = &rt
	}
	if _, err := m.store.RecordHealthSample(ctx, sample); err != nil {
		logger.Error().Err(err).Msg("record health sample")
	}

	metrics.IndexerHealthChecksTotal.WithLabelValues(strconv.FormatInt(ix.ID, 10), result).Inc()
	timer.ObserveDurationVec(metrics.IndexerHealthCheckDuration, strconv.FormatInt(ix.ID, 10))

	m.handleTransition(ctx, ix, status, logger)
}

// classify implements §4.3's classification table.
func classify(passed bool, priorFailures, failureThreshold int, successRate24h float64) catalog.HealthStatus {
	if !passed {
		if priorFailures+1 >= failureThreshold {
			return catalog.HealthDown
		}
		return catalog.HealthDegraded
	}
	if priorFailures > 0 {
		return catalog.HealthRecovering
	}
	switch {
	case successRate24h >= 0.95:
		return catalog.HealthHealthy
	case successRate24h >= 0.80:
		return catalog.HealthDegraded
	default:
		return catalog.HealthDown
	}
}

func (m *Monitor) handleTransition(ctx context.Context, ix catalog.Indexer, status catalog.HealthStatus, logger zerolog.Logger) {
	m.mu.Lock()
	wasFailed := m.failedIndexers[ix.ID]
	m.mu.Unlock()

	if status == catalog.HealthDown || status == catalog.HealthDegraded {
		if !wasFailed && m.registry.ConsecutiveFailures(ix.ID) >= m.cfg.FailureThreshold {
			metrics.FailoverEventsTotal.WithLabelValues(string(status)).Inc()
			logger.Warn().Str("status", string(status)).Msg("indexer failover triggered")
			if err := m.store.LogSystem(ctx, "warn", "health_monitor",
				fmt.Sprintf("indexer %d failover triggered (%s)", ix.ID, status), ""); err != nil {
				logger.Error().Err(err).Msg("log failover event")
			}
			m.mu.Lock()
			m.failedIndexers[ix.ID] = true
			m.mu.Unlock()
		}
		return
	}

	if wasFailed && status == catalog.HealthHealthy {
		m.tryRecover(ctx, ix, logger)
	}
}

// tryRecover re-probes to confirm recovery before resetting the
// breaker, throttled to cfg.MaxRecoveryAttempts per rolling hour per
// indexer per §4.3.
func (m *Monitor) tryRecover(ctx context.Context, ix catalog.Indexer, logger zerolog.Logger) {
	if !m.allowRecoveryAttempt(ix.ID) {
		logger.Debug().Msg("recovery attempt throttled")
		return
	}

	_, err := Probe(ctx, ix, m.client)
	if err != nil {
		logger.Debug().Err(err).Msg("recovery re-probe failed")
		return
	}

	m.registry.Reset(ix.ID)
	m.mu.Lock()
	delete(m.failedIndexers, ix.ID)
	m.mu.Unlock()

	metrics.RecoveryEventsTotal.Inc()
	logger.Info().Msg("indexer recovered")
	if err := m.store.LogSystem(ctx, "info", "health_monitor",
		fmt.Sprintf("indexer %d recovered", ix.ID), ""); err != nil {
		logger.Error().Err(err).Msg("log recovery event")
	}
}

func (m *Monitor) allowRecoveryAttempt(indexerID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-time.Hour)
	attempts := m.recoveryAttempts[indexerID][:0]
	for _, t := range m.recoveryAttempts[indexerID] {
		if t.After(cutoff) {
			attempts = append(attempts, t)
		}
	}
	if len(attempts) >= m.cfg.MaxRecoveryAttempts {
		m.recoveryAttempts[indexerID] = attempts
		return false
	}
	m.recoveryAttempts[indexerID] = append(attempts, time.Now())
	return true
}
