package dedup

import (
	"time"

	"github.com/foliofox/foliofox/pkg/catalog"
)

// DuplicateGroup is a connected component of two or more books judged
// duplicates of one another, with the highest-scoring member chosen
// as primary.
type DuplicateGroup struct {
	PrimaryID   int64
	MemberIDs   []int64
	Matches     []Match
	SpaceSaved  int64
	GroupAction Action
}

// union-find over book IDs, used to collapse transitive matches (A~B,
// B~C) into one group even when A and C were never directly compared.
type unionFind struct {
	parent map[int64]int64
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[int64]int64)}
}

func (u *unionFind) find(x int64) int64 {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
	}
	if u.parent[x] != x {
		u.parent[x] = u.find(u.parent[x])
	}
	return u.parent[x]
}

func (u *unionFind) union(x, y int64) {
	rx, ry := u.find(x), u.find(y)
	if rx != ry {
		u.parent[rx] = ry
	}
}

// GroupMatches collapses a flat list of pairwise matches into
// DuplicateGroups via union-find, selecting the primary by the
// highest PrimaryScore and summing the TotalFileSize of every
// non-primary member as space_saved.
func GroupMatches(matches []Match, books map[int64]catalog.Book, now time.Time) []DuplicateGroup {
	uf := newUnionFind()
	for _, m := range matches {
		uf.union(m.BookAID, m.BookBID)
	}

	members := make(map[int64][]int64)
	for id := range uf.parent {
		root := uf.find(id)
		members[root] = append(members[root], id)
	}

	groupMatches := make(map[int64][]Match)
	for _, m := range matches {
		root := uf.find(m.BookAID)
		groupMatches[root] = append(groupMatches[root], m)
	}

	var groups []DuplicateGroup
	for root, ids := range members {
		if len(ids) < 2 {
			continue
		}

		var primaryID int64
		var bestScore float64
		first := true
		var spaceSaved int64
		for _, id := range ids {
			b, ok := books[id]
			if !ok {
				continue
			}
			score := PrimaryScore(b, now)
			if first || score > bestScore {
				bestScore = score
				primaryID = id
				first = false
			}
		}
		for _, id := range ids {
			if id == primaryID {
				continue
			}
			if b, ok := books[id]; ok {
				spaceSaved += b.TotalFileSize
			}
		}

		action := ActionMergeMetadata
		gm := groupMatches[root]
		if len(ids) == 2 && len(gm) == 1 {
			a, b := books[ids[0]], books[ids[1]]
			action = RecommendedAction(a, b)
		}

		groups = append(groups, DuplicateGroup{
			PrimaryID:   primaryID,
			MemberIDs:   ids,
			Matches:     gm,
			SpaceSaved:  spaceSaved,
			GroupAction: action,
		})
	}
	return groups
}
