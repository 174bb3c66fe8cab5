package dedup

import (
	"time"

	"github.com/foliofox/foliofox/pkg/catalog"
)

// Action is the recommended resolution for a duplicate group.
type Action string

const (
	ActionKeepA         Action = "keep_a"
	ActionKeepB         Action = "keep_b"
	ActionMergeMetadata Action = "merge_metadata"
)

// completenessWeights are §4.5's field weights for the completeness
// fraction of the primary-book score.
var completenessWeights = map[string]float64{
	"title":            1.0,
	"authors":          0.8,
	"description":      0.6,
	"isbn13":           0.7,
	"publication_date": 0.5,
	"publisher":        0.4,
	"page_count":       0.3,
	"rating_avg":       0.2,
	"genres":           0.4,
}

// Completeness is the weighted fraction of completenessWeights' fields
// that are present (non-zero) on b.
func Completeness(b catalog.Book) float64 {
	var earned, total float64
	present := map[string]bool{
		"title":            b.Title != "",
		"authors":          len(b.Authors) > 0,
		"description":      b.Description != "",
		"isbn13":           b.ISBN13 != "",
		"publication_date": b.PublicationDate != "",
		"publisher":        b.Publisher != "",
		"page_count":       b.PageCount > 0,
		"rating_avg":       b.RatingAvg > 0,
		"genres":           len(b.Genres) > 0,
	}
	for field, weight := range completenessWeights {
		total += weight
		if present[field] {
			earned += weight
		}
	}
	if total == 0 {
		return 0
	}
	return earned / total
}

// qualityIndicatorCount counts which of the five resolved quality
// indicators (§4.5's ambiguous "quality_indicators_present/5") b
// satisfies: has ISBN-13, has a description, has at least one rating,
// has genres, and belongs to a series.
func qualityIndicatorCount(b catalog.Book) int {
	count := 0
	if b.ISBN13 != "" {
		count++
	}
	if b.Description != "" {
		count++
	}
	if b.RatingCount > 0 {
		count++
	}
	if len(b.Genres) > 0 {
		count++
	}
	if b.Series != "" {
		count++
	}
	return count
}

// PrimaryScore implements §4.5's primary-book score:
//
//	0.4*completeness + 0.2*min(file_count/10,1) +
//	0.15*(rating_avg/5)*min(rating_count/100,1) +
//	0.15*max(0,1-age_days/365) + 0.1*quality_indicators_present/5
func PrimaryScore(b catalog.Book, now time.Time) float64 {
	completeness := Completeness(b)

	fileScore := float64(b.FileCount) / 10
	if fileScore > 1 {
		fileScore = 1
	}

	ratingVolume := float64(b.RatingCount) / 100
	if ratingVolume > 1 {
		ratingVolume = 1
	}
	ratingScore := (b.RatingAvg / 5) * ratingVolume

	ageDays := now.Sub(b.UpdatedAt).Hours() / 24
	freshness := 1 - ageDays/365
	if freshness < 0 {
		freshness = 0
	}

	quality := float64(qualityIndicatorCount(b)) / 5

	return 0.4*completeness + 0.2*fileScore + 0.15*ratingScore + 0.15*freshness + 0.1*quality
}

// RecommendedAction implements §4.5's resolution precedence: prefer
// the more complete book, then the one with more files, then the more
// recently updated, falling back to merge_metadata when all three tie.
func RecommendedAction(a, b catalog.Book) Action {
	ca, cb := Completeness(a), Completeness(b)
	if diff := ca - cb; diff > 0.3 {
		return ActionKeepA
	} else if diff < -0.3 {
		return ActionKeepB
	}

	if a.FileCount != b.FileCount {
		if a.FileCount > b.FileCount {
			return ActionKeepA
		}
		return ActionKeepB
	}

	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		if a.UpdatedAt.After(b.UpdatedAt) {
			return ActionKeepA
		}
		return ActionKeepB
	}

	return ActionMergeMetadata
}
