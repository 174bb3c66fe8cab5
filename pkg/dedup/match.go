package dedup

import (
	"github.com/foliofox/foliofox/pkg/catalog"
)

// MatchKind is one of §4.5's four ways two books can be judged
// duplicates.
type MatchKind string

const (
	MatchISBN        MatchKind = "isbn"
	MatchExact       MatchKind = "exact"
	MatchFuzzy       MatchKind = "fuzzy"
	MatchContentHash MatchKind = "content_hash"
)

// Confidence is the match's strength bucket.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Weights for §4.5's overall similarity score.
const (
	weightTitle     = 0.4
	weightAuthors   = 0.3
	weightISBN      = 0.15
	weightDateYear  = 0.1
	weightPublisher = 0.05

	defaultFuzzyThreshold         = 0.85
	contentHashSizeThresholdBytes = 1024
	contentHashTitleSimThreshold  = 0.6
)

// Match describes one candidate duplicate pair.
type Match struct {
	BookAID     int64
	BookBID     int64
	Kind        MatchKind
	Confidence  Confidence
	Score       float64
	TitleSim    float64
	AuthorSim   float64
	Differences map[string][2]string
}

// diffFields lists every scalar/composite field §4.5 compares when
// reporting per-field differences between two candidate duplicates.
var diffFields = []string{
	"title", "subtitle", "description", "isbn10", "isbn13", "asin",
	"publication_date", "publisher", "language", "page_count",
	"rating_avg", "rating_count", "series", "series_position",
	"authors", "genres", "tags",
}

// Options configures a dedup scan; zero values are replaced with
// §4.5's defaults by Evaluate.
type Options struct {
	FuzzyThreshold float64
}

// Evaluate computes the §4.5 match verdict for a and b, or reports
// isMatch=false when neither ISBN, ASIN, fuzzy score, nor content-hash
// heuristic clears its threshold.
func Evaluate(sims *simCache, a, b catalog.Book, opts Options) (m Match, isMatch bool) {
	threshold := opts.FuzzyThreshold
	if threshold <= 0 {
		threshold = defaultFuzzyThreshold
	}

	titleSim := sims.Sim(NormTitle(a.Title), NormTitle(b.Title))
	authorSim := sims.AuthorListSim(normAuthors(a.Authors), normAuthors(b.Authors))

	m = Match{
		BookAID:     a.ID,
		BookBID:     b.ID,
		TitleSim:    titleSim,
		AuthorSim:   authorSim,
		Differences: diff(a, b),
	}

	if isbnEqual(a, b) {
		m.Kind, m.Confidence, m.Score = MatchISBN, ConfidenceHigh, 1.0
		return m, true
	}
	if a.ASIN != "" && a.ASIN == b.ASIN {
		m.Kind, m.Confidence, m.Score = MatchExact, ConfidenceHigh, 1.0
		return m, true
	}

	overall := overallSimilarity(titleSim, authorSim, a, b)
	fuzzyScore := 0.7*titleSim + 0.3*authorSim
	if fuzzyScore >= threshold {
		m.Kind, m.Score = MatchFuzzy, overall
		switch {
		case fuzzyScore >= 0.95:
			m.Confidence = ConfidenceHigh
		case fuzzyScore >= 0.85:
			m.Confidence = ConfidenceMedium
		default:
			m.Confidence = ConfidenceLow
		}
		return m, true
	}

	if a.TotalFileSize > contentHashSizeThresholdBytes && a.TotalFileSize == b.TotalFileSize &&
		titleSim >= contentHashTitleSimThreshold {
		m.Kind, m.Confidence, m.Score = MatchContentHash, ConfidenceMedium, overall
		return m, true
	}

	return Match{}, false
}

// overallSimilarity implements §4.5's weighted-sum overall score.
func overallSimilarity(titleSim, authorSim float64, a, b catalog.Book) float64 {
	isbnMatch := 0.0
	if isbnEqual(a, b) {
		isbnMatch = 1.0
	}
	dateMatch := 0.0
	if y := NormDate(a.PublicationDate); y != "" && y == NormDate(b.PublicationDate) {
		dateMatch = 1.0
	}
	publisherSim := 0.0
	if a.Publisher != "" && b.Publisher != "" {
		na, nb := normPublisher(a.Publisher), normPublisher(b.Publisher)
		if na == nb {
			publisherSim = 1.0
		}
	}

	return weightTitle*titleSim + weightAuthors*authorSim + weightISBN*isbnMatch +
		weightDateYear*dateMatch + weightPublisher*publisherSim
}

func isbnEqual(a, b catalog.Book) bool {
	if a.ISBN13 != "" && NormISBN(a.ISBN13) == NormISBN(b.ISBN13) {
		return true
	}
	if a.ISBN10 != "" && NormISBN(a.ISBN10) == NormISBN(b.ISBN10) {
		return true
	}
	return false
}

func normAuthors(authors []string) []string {
	out := make([]string, len(authors))
	for i, a := range authors {
		out[i] = NormAuthor(a)
	}
	return out
}

func normPublisher(p string) string {
	return NormTitle(p)
}

func diff(a, b catalog.Book) map[string][2]string {
	out := make(map[string][2]string)
	av := fieldValues(a)
	bv := fieldValues(b)
	for _, f := range diffFields {
		if av[f] != bv[f] {
			out[f] = [2]string{av[f], bv[f]}
		}
	}
	return out
}

func fieldValues(b catalog.Book) map[string]string {
	return map[string]string{
		"title":            b.Title,
		"subtitle":         b.Subtitle,
		"description":      b.Description,
		"isbn10":           b.ISBN10,
		"isbn13":           b.ISBN13,
		"asin":             b.ASIN,
		"publication_date": b.PublicationDate,
		"publisher":        b.Publisher,
		"language":         b.Language,
		"page_count":       itoa(b.PageCount),
		"rating_avg":       ftoa(b.RatingAvg),
		"rating_count":     itoa(b.RatingCount),
		"series":           b.Series,
		"series_position":  ftoa(b.SeriesPosition),
		"authors":          joinStrings(b.Authors),
		"genres":           joinStrings(b.Genres),
		"tags":             joinStrings(b.Tags),
	}
}
