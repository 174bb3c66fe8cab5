package queue

import (
	"math"
	"math/rand"
	"time"

	"github.com/foliofox/foliofox/pkg/ferrors"
)

const (
	retryBaseDelay = 60 * time.Second
	retryExpBase   = 2.0
	retryMaxDelay  = 3600 * time.Second
)

// RetryDelay implements §4.4's retry delay formula:
//
//	min(max_delay, base_delay · exp_base^retry_count · multiplier(reason)) · jitter(0.8, 1.2)
//
// with fixed overrides for rate_limited, server_error, and
// file_corrupted that ignore retry_count and jitter entirely. No
// per-reason multiplier is applied: multiplier(reason) is 1 for every
// other reason. Jitter applies after the cap, so a delay can reach
// 1.2 · max_delay.
func RetryDelay(reason string, retryCount int) time.Duration {
	switch reason {
	case ferrors.ReasonRateLimited:
		return 300 * time.Second
	case ferrors.ReasonServerError:
		return 900 * time.Second
	case ferrors.ReasonFileCorrupted:
		return 0
	}

	delay := float64(retryBaseDelay) * math.Pow(retryExpBase, float64(retryCount))
	if delay > float64(retryMaxDelay) {
		delay = float64(retryMaxDelay)
	}
	jitter := 0.8 + rand.Float64()*0.4
	return time.Duration(delay * jitter)
}

// CooledDown reports whether updatedAt is old enough for a
// retry-eligible item of the given reason/retry_count to be retried
// now, per §4.4 step 4's `updated_at < now − retry_cooldown(...)`.
func CooledDown(reason string, retryCount int, updatedAt time.Time) bool {
	return time.Since(updatedAt) >= RetryDelay(reason, retryCount)
}

// SmartRetrySkip implements §4.4's smart-retry filter: skip a retry
// when the indexer has accumulated too many recent failures, or the
// error message itself signals a permanent condition.
func SmartRetrySkip(failuresLastHour int, errMsg string) bool {
	return failuresLastHour >= 5 || ferrors.IsPermanent(errMsg)
}
