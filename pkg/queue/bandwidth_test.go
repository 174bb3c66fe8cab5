package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBandwidthLimiterDisabledByDefault(t *testing.T) {
	b := NewBandwidthLimiter(0)
	require.NoError(t, b.WaitN(context.Background(), 1<<20))
}

func TestBandwidthLimiterNilReceiverIsNoop(t *testing.T) {
	var b *BandwidthLimiter
	require.NoError(t, b.WaitN(context.Background(), 1<<20))
}

func TestBandwidthLimiterWaitsWithinBurst(t *testing.T) {
	b := NewBandwidthLimiter(8) // 1 MB/s burst
	require.NoError(t, b.WaitN(context.Background(), 1024))
}
