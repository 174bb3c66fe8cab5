package main

import (
	"context"
	"time"

	"github.com/foliofox/foliofox/pkg/config"
	"github.com/foliofox/foliofox/pkg/log"
	"github.com/foliofox/foliofox/pkg/maintenance"
)

const (
	quickMaintenanceInterval = 1 * time.Hour
	fullMaintenanceInterval  = 24 * time.Hour
)

// runMaintenanceLoop drives the Maintenance Orchestrator on two
// cadences: a quick integrity_check + health snapshot every hour, and
// the full §4.6 dependency-graph run once a day.
func runMaintenanceLoop(ctx context.Context, orch *maintenance.Orchestrator, cfg config.Config) error {
	logger := log.WithComponent("maintenance_loop")

	quick := time.NewTicker(quickMaintenanceInterval)
	defer quick.Stop()
	full := time.NewTicker(fullMaintenanceInterval)
	defer full.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-quick.C:
			report, err := orch.RunQuick(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("quick maintenance run failed")
				continue
			}
			logger.Info().Float64("success_rate", report.SuccessRate).Msg("quick maintenance run complete")
		case <-full.C:
			report, err := orch.RunFull(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("full maintenance run failed")
				continue
			}
			logger.Info().Float64("success_rate", report.SuccessRate).Msg("full maintenance run complete")
		}
	}
}
