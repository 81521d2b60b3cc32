package builtin

import (
	"sort"
	"time"
)

// DeDup selects one authoritative record per business key: the one with the
// most recent timestamp. Callers reject keyless records before Apply.
//
// Ties on the maximal timestamp are broken by Prefer, which must be a strict
// total order over distinguishable records so the winner does not depend on
// the order rows were read from staging. A nil timestamp is older than any
// real one.
type DeDup[T any] struct {
	Key    func(T) string
	At     func(T) *time.Time
	Prefer func(a, b T) bool // a wins over b on equal timestamps
}

// Apply returns the winners ordered by key. The input slice is not modified.
func (d DeDup[T]) Apply(in []T) []T {
	winners := make(map[string]slot[T], len(in))

	for _, r := range in {
		key := d.Key(r)
		cur := slot[T]{rec: r, at: d.At(r)}
		prev, exists := winners[key]
		if !exists || d.beats(cur, prev) {
			winners[key] = cur
		}
	}

	keys := make([]string, 0, len(winners))
	for k := range winners {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, winners[k].rec)
	}
	return out
}

type slot[T any] struct {
	rec T
	at  *time.Time
}

func (d DeDup[T]) beats(cur, prev slot[T]) bool {
	switch {
	case cur.at == nil && prev.at == nil:
	case cur.at == nil:
		return false
	case prev.at == nil:
		return true
	case cur.at.After(*prev.at):
		return true
	case cur.at.Before(*prev.at):
		return false
	}
	return d.Prefer != nil && d.Prefer(cur.rec, prev.rec)
}
