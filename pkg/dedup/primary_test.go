package dedup

import (
	"testing"
	"time"

	"github.com/foliofox/foliofox/pkg/catalog"
)

func TestCompletenessFull(t *testing.T) {
	b := catalog.Book{
		Title:           "Dune",
		Authors:         []string{"Frank Herbert"},
		Description:     "A desert planet...",
		ISBN13:          "9780441013593",
		PublicationDate: "1965",
		Publisher:       "Chilton",
		PageCount:       412,
		RatingAvg:       4.5,
		Genres:          []string{"Science Fiction"},
	}
	if got := Completeness(b); got != 1.0 {
		t.Errorf("Completeness() = %v, want 1.0", got)
	}
}

func TestCompletenessEmpty(t *testing.T) {
	if got := Completeness(catalog.Book{}); got != 0.0 {
		t.Errorf("Completeness() = %v, want 0.0", got)
	}
}

func TestCompletenessPartial(t *testing.T) {
	b := catalog.Book{Title: "Dune", Authors: []string{"Frank Herbert"}}
	got := Completeness(b)
	if got <= 0 || got >= 1 {
		t.Errorf("Completeness() = %v, want strictly between 0 and 1", got)
	}
}

func TestPrimaryScoreRewardsCompletenessAndFiles(t *testing.T) {
	now := time.Now()
	rich := catalog.Book{
		Title: "Dune", Authors: []string{"Frank Herbert"}, Description: "desc",
		ISBN13: "9780441013593", PublicationDate: "1965", Publisher: "Chilton",
		PageCount: 412, RatingAvg: 4.5, RatingCount: 500, Genres: []string{"SF"},
		FileCount: 3, UpdatedAt: now,
	}
	sparse := catalog.Book{Title: "Dune", UpdatedAt: now}

	if PrimaryScore(rich, now) <= PrimaryScore(sparse, now) {
		t.Error("expected the more complete, more-filed book to score higher")
	}
}

func TestPrimaryScorePenalizesAge(t *testing.T) {
	now := time.Now()
	fresh := catalog.Book{Title: "Dune", UpdatedAt: now}
	stale := catalog.Book{Title: "Dune", UpdatedAt: now.Add(-2 * 365 * 24 * time.Hour)}

	if PrimaryScore(fresh, now) <= PrimaryScore(stale, now) {
		t.Error("expected the recently updated book to score higher")
	}
}

func TestRecommendedActionPrefersMoreComplete(t *testing.T) {
	now := time.Now()
	a := catalog.Book{
		Title: "Dune", Authors: []string{"Frank Herbert"}, Description: "desc",
		ISBN13: "9780441013593", PublicationDate: "1965", Publisher: "Chilton",
		PageCount: 412, RatingAvg: 4.5, Genres: []string{"SF"}, UpdatedAt: now,
	}
	b := catalog.Book{Title: "Dune", UpdatedAt: now}

	if got := RecommendedAction(a, b); got != ActionKeepA {
		t.Errorf("RecommendedAction() = %q, want keep_a", got)
	}
}

func TestRecommendedActionFileCountTiebreak(t *testing.T) {
	now := time.Now()
	a := catalog.Book{Title: "Dune", FileCount: 3, UpdatedAt: now}
	b := catalog.Book{Title: "Dune", FileCount: 1, UpdatedAt: now}

	if got := RecommendedAction(a, b); got != ActionKeepA {
		t.Errorf("RecommendedAction() = %q, want keep_a", got)
	}
}

func TestRecommendedActionFallsBackToMerge(t *testing.T) {
	now := time.Now()
	a := catalog.Book{Title: "Dune", FileCount: 1, UpdatedAt: now}
	b := catalog.Book{Title: "Dune", FileCount: 1, UpdatedAt: now}

	if got := RecommendedAction(a, b); got != ActionMergeMetadata {
		t.Errorf("RecommendedAction() = %q, want merge_metadata", got)
	}
}
