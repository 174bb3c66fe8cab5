package dedup

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	leadingArticles = map[string]bool{
		"the": true, "a": true, "an": true,
		"le": true, "la": true, "les": true,
		"un": true, "une": true,
	}

	nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]+`)
	punctuation     = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	punctuationKeepDot = regexp.MustCompile(`[^\p{L}\p{N}\s.]+`)
	whitespace      = regexp.MustCompile(`\s+`)
	editionMarker   = regexp.MustCompile(`(?i)\b\d+(st|nd|rd|th)?\s+edition\b|\brevised edition\b`)
	yearPattern     = regexp.MustCompile(`\d{4}`)
	lastFirstComma  = regexp.MustCompile(`^\s*([^,]+)\s*,\s*(.+)\s*$`)
)

// NormISBN strips non-alphanumeric characters and uppercases, per
// §4.5. Applied to both ISBN-10 and ISBN-13 values before comparison.
func NormISBN(s string) string {
	return strings.ToUpper(nonAlphanumeric.ReplaceAllString(s, ""))
}

// NormTitle implements §4.5's title normalization: Unicode NFKD,
// lowercase, strip a single leading article, strip punctuation,
// collapse whitespace, and strip a trailing edition marker.
func NormTitle(s string) string {
	s = norm.NFKD.String(s)
	s = strings.ToLower(s)
	s = editionMarker.ReplaceAllString(s, "")
	s = punctuation.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if idx := strings.IndexByte(s, ' '); idx > 0 {
		if leadingArticles[s[:idx]] {
			s = strings.TrimSpace(s[idx+1:])
		}
	}
	return s
}

// NormAuthor implements §4.5's author normalization: NFKD, lowercase,
// strip punctuation except '.', collapse whitespace, and rewrite
// "Last, First" to "First Last".
func NormAuthor(s string) string {
	s = norm.NFKD.String(s)
	s = strings.ToLower(s)
	if m := lastFirstComma.FindStringSubmatch(s); m != nil {
		s = m[2] + " " + m[1]
	}
	s = punctuationKeepDot.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormDate extracts the first 4-digit year found in s, per §4.5.
// Returns "" when no year is present.
func NormDate(s string) string {
	return yearPattern.FindString(s)
}
