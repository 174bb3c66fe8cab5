// Package dedup implements the duplicate-book detection and merge
// engine (E): a pairwise scan over the catalog that normalizes titles,
// authors, ISBNs, and dates, scores similarity between candidates,
// groups transitively matched books via union-find, and merges a
// group's secondary members into its highest-scoring primary inside a
// single catalog transaction.
//
// Scan never mutates the catalog; it reports Matches and
// DuplicateGroups for a caller to review before calling ApplyGroup or
// Merge directly.
package dedup
