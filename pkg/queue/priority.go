package queue

import (
	"context"
	"time"

	"github.com/foliofox/foliofox/pkg/catalog"
	"github.com/foliofox/foliofox/pkg/log"
)

const (
	priorityAgeThreshold   = 2 * time.Hour
	priorityRetryThreshold = 2
	priorityLoadThreshold  = 0.80
	prioritySmallSizeBytes = 10 * 1024 * 1024
)

// OptimizePriority implements §4.4's periodic priority-optimization
// pass over the whole pending set: items aging past 2h drift toward
// higher priority (1), items that have already failed and retried
// drift toward lower priority (10), and under load small items are
// favored so they clear the queue quickly.
func OptimizePriority(ctx context.Context, store *catalog.Store, maxConcurrent, active int) error {
	logger := log.WithComponent("priority_optimizer")

	pending, err := store.ListAllPending(ctx)
	if err != nil {
		return err
	}

	loaded := maxConcurrent > 0 && float64(active)/float64(maxConcurrent) >= priorityLoadThreshold

	for _, item := range pending {
		delta := 0
		if time.Since(item.CreatedAt) > priorityAgeThreshold {
			delta--
		}
		if item.RetryCount >= priorityRetryThreshold {
			delta++
		}
		if loaded && item.SizeBytes != nil && *item.SizeBytes < prioritySmallSizeBytes {
			delta--
		}
		if delta == 0 {
			continue
		}
		if err := store.AdjustPriority(ctx, item.ID, delta); err != nil {
			logger.Error().Err(err).Int64("download_id", item.ID).Msg("adjust priority")
		}
	}
	return nil
}
