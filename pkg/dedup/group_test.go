package dedup

import (
	"testing"
	"time"

	"github.com/foliofox/foliofox/pkg/catalog"
)

func TestGroupMatchesTransitiveChain(t *testing.T) {
	now := time.Now()
	books := map[int64]catalog.Book{
		1: {ID: 1, Title: "Dune", FileCount: 2, UpdatedAt: now},
		2: {ID: 2, Title: "Dune", FileCount: 1, UpdatedAt: now},
		3: {ID: 3, Title: "Dune", FileCount: 1, UpdatedAt: now, TotalFileSize: 1000},
	}
	matches := []Match{
		{BookAID: 1, BookBID: 2, Kind: MatchFuzzy},
		{BookAID: 2, BookBID: 3, Kind: MatchFuzzy},
	}

	groups := GroupMatches(matches, books, now)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	g := groups[0]
	if len(g.MemberIDs) != 3 {
		t.Errorf("expected 3 members in transitively-linked group, got %d", len(g.MemberIDs))
	}
}

func TestGroupMatchesPrimaryIsHighestScoring(t *testing.T) {
	now := time.Now()
	books := map[int64]catalog.Book{
		1: {ID: 1, Title: "Dune", FileCount: 5, UpdatedAt: now, TotalFileSize: 100},
		2: {ID: 2, Title: "Dune", FileCount: 0, UpdatedAt: now.Add(-365 * 24 * time.Hour), TotalFileSize: 200},
	}
	matches := []Match{{BookAID: 1, BookBID: 2, Kind: MatchFuzzy}}

	groups := GroupMatches(matches, books, now)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].PrimaryID != 1 {
		t.Errorf("PrimaryID = %d, want 1", groups[0].PrimaryID)
	}
	if groups[0].SpaceSaved != 200 {
		t.Errorf("SpaceSaved = %d, want 200", groups[0].SpaceSaved)
	}
}

func TestGroupMatchesSinglesIgnored(t *testing.T) {
	now := time.Now()
	books := map[int64]catalog.Book{
		1: {ID: 1, Title: "Dune"},
	}
	groups := GroupMatches(nil, books, now)
	if len(groups) != 0 {
		t.Errorf("expected no groups for an unmatched singleton, got %d", len(groups))
	}
}
