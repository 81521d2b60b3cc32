package builtin

import (
	"sort"
	"time"
)

// EndDates assigns validity end dates to versioned records. Records are
// partitioned by Key and ordered by Start ascending, with nil starts first
// and Tie breaking equal starts. Each record's end date is the next
// record's start minus one day; the last version of a key is open-ended.
//
// When two consecutive versions share a start date the earlier one ends the
// day before its own start. That is the faithful reading of the rule and is
// reported by the audit as an inverted range rather than hidden here.
type EndDates[T any] struct {
	Key    func(T) string
	Start  func(T) *time.Time
	Tie    func(a, b T) bool // a sorts before b on equal starts
	SetEnd func(rec *T, end *time.Time)
}

// Apply returns a copy of in, grouped by key (keys ascending) and ordered
// within each group, with end dates set.
func (w EndDates[T]) Apply(in []T) []T {
	out := make([]T, len(in))
	copy(out, in)

	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := w.Key(out[i]), w.Key(out[j])
		if ki != kj {
			return ki < kj
		}
		si, sj := w.Start(out[i]), w.Start(out[j])
		switch {
		case si == nil && sj != nil:
			return true
		case si != nil && sj == nil:
			return false
		case si != nil && !si.Equal(*sj):
			return si.Before(*sj)
		}
		return w.Tie != nil && w.Tie(out[i], out[j])
	})

	for i := range out {
		var end *time.Time
		if i+1 < len(out) && w.Key(out[i+1]) == w.Key(out[i]) {
			if next := w.Start(out[i+1]); next != nil {
				e := next.AddDate(0, 0, -1)
				end = &e
			}
		}
		w.SetEnd(&out[i], end)
	}
	return out
}
