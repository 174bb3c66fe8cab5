package dedup

import (
	"context"
	"time"

	"github.com/foliofox/foliofox/pkg/catalog"
	"github.com/foliofox/foliofox/pkg/log"
	"github.com/foliofox/foliofox/pkg/metrics"
)

// Report is the outcome of one full dedup scan.
type Report struct {
	BooksScanned int
	Matches      []Match
	Groups       []DuplicateGroup
	Duration     time.Duration
}

// Scan compares every book in the catalog pairwise, groups the
// resulting matches into DuplicateGroups, and returns a Report. It
// never merges anything itself; callers apply Merge per group after
// reviewing the recommended action.
func Scan(ctx context.Context, store *catalog.Store, opts Options) (*Report, error) {
	logger := log.WithComponent("dedup")
	start := time.Now()

	books, err := store.ListBooks(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]catalog.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}

	sims := newSimCache()
	var matches []Match
	for i := 0; i < len(books); i++ {
		for j := i + 1; j < len(books); j++ {
			m, ok := Evaluate(sims, books[i], books[j], opts)
			if !ok {
				continue
			}
			matches = append(matches, m)
			metrics.DedupMatchesTotal.WithLabelValues(string(m.Kind)).Inc()
		}
	}

	groups := GroupMatches(matches, byID, start)

	duration := time.Since(start)
	metrics.DedupScanDuration.Observe(duration.Seconds())
	logger.Info().Int("books_scanned", len(books)).Int("matches", len(matches)).
		Int("groups", len(groups)).Dur("duration", duration).Msg("dedup scan complete")

	return &Report{
		BooksScanned: len(books),
		Matches:      matches,
		Groups:       groups,
		Duration:     duration,
	}, nil
}

// ApplyGroup merges every non-primary member of g into its primary
// and records the merge in metrics. It stops at the first error,
// leaving any remaining members in the group unmerged.
func ApplyGroup(ctx context.Context, store *catalog.Store, g DuplicateGroup) error {
	for _, id := range g.MemberIDs {
		if id == g.PrimaryID {
			continue
		}
		if err := Merge(ctx, store, g.PrimaryID, id, g.GroupAction); err != nil {
			return err
		}
		metrics.DedupMergesTotal.Inc()
	}
	return nil
}
