package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foliofox/foliofox/pkg/catalog"
)

func testIndexers() []catalog.Indexer {
	return []catalog.Indexer{
		{ID: 1, Name: "a", Active: true, Priority: 3},
		{ID: 2, Name: "b", Active: true, Priority: 1},
		{ID: 3, Name: "c", Active: false, Priority: 1},
	}
}

func TestSelectPriorityPicksLowestPriorityAmongActive(t *testing.T) {
	reg := NewRegistry(DefaultConfig())
	sel := NewSelector(reg, Priority, DefaultWeights())

	chosen, err := sel.Select(testIndexers())
	require.NoError(t, err)
	require.Equal(t, int64(2), chosen.ID)
}

func TestSelectExcludesOpenBreaker(t *testing.T) {
	reg := NewRegistry(Config{FailureThreshold: 1, RecoveryTimeout: time.Hour})
	sel := NewSelector(reg, Priority, DefaultWeights())

	finish := reg.BeginRequest(2)
	finish(false, 100) // trips indexer 2's breaker open

	chosen, err := sel.Select(testIndexers())
	require.NoError(t, err)
	require.Equal(t, int64(1), chosen.ID) // indexer 2 excluded, falls back to 1
}

func TestSelectReturnsErrNoCandidatesWhenAllInactive(t *testing.T) {
	reg := NewRegistry(DefaultConfig())
	sel := NewSelector(reg, RoundRobin, DefaultWeights())

	_, err := sel.Select([]catalog.Indexer{{ID: 1, Active: false}})
	require.ErrorIs(t, err, ErrNoCandidates)
}
