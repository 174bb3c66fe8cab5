package queue

import (
	"context"

	"github.com/foliofox/foliofox/pkg/metrics"
	"golang.org/x/time/rate"
)

// BandwidthLimiter throttles total download throughput to a configured
// megabits-per-second ceiling via a token bucket, one token per byte.
// A zero/negative limit disables throttling entirely.
type BandwidthLimiter struct {
	limiter *rate.Limiter
}

// NewBandwidthLimiter builds a limiter whose rate is mbps megabits per
// second and whose burst is one second's worth of bytes, matching
// §4.4's "bandwidth_limit_mbps" configuration knob.
func NewBandwidthLimiter(mbps float64) *BandwidthLimiter {
	if mbps <= 0 {
		return &BandwidthLimiter{}
	}
	bytesPerSec := mbps * 1_000_000 / 8
	return &BandwidthLimiter{limiter: rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec))}
}

// WaitN blocks until n bytes' worth of tokens are available, or ctx is
// cancelled. Called once per chunk write in the per-download task.
func (b *BandwidthLimiter) WaitN(ctx context.Context, n int) error {
	if b == nil || b.limiter == nil {
		return nil
	}
	if err := b.limiter.WaitN(ctx, n); err != nil {
		return err
	}
	metrics.BandwidthTokensAvailable.Set(b.limiter.Tokens())
	return nil
}
