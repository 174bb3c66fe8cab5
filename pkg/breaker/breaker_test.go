package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 3, RecoveryTimeout: 50 * time.Millisecond})

	require.True(t, b.Allow())
	b.RecordFailure()
	b.RecordFailure()
	require.Equal(t, Closed, b.State())
	b.RecordFailure()
	require.Equal(t, Open, b.State())
	require.False(t, b.Allow())
}

func TestBreakerHalfOpenProbeSuccessCloses(t *testing.T) {
	b := New(Config{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond})
	b.RecordFailure()
	require.Equal(t, Open, b.State())

	time.Sleep(15 * time.Millisecond)
	require.True(t, b.Allow()) // transitions to half-open, lets the probe through
	require.Equal(t, HalfOpen, b.State())

	// A second concurrent caller must be refused while the probe is in flight.
	require.False(t, b.Allow())

	b.RecordSuccess()
	require.Equal(t, Closed, b.State())
	require.Zero(t, b.ConsecutiveFailures())
}

func TestBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	b := New(Config{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond})
	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	require.True(t, b.Allow())
	b.RecordFailure()
	require.Equal(t, Open, b.State())
}
