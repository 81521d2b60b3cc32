package builtin

import (
	"testing"
	"time"
)

type version struct {
	key   string
	id    int
	start *time.Time
	end   *time.Time
}

var versionEnds = EndDates[version]{
	Key:    func(v version) string { return v.key },
	Start:  func(v version) *time.Time { return v.start },
	Tie:    func(a, b version) bool { return a.id < b.id },
	SetEnd: func(v *version, end *time.Time) { v.end = end },
}

func TestEndDates(t *testing.T) {
	d1, d2, d3 := day(2011, 7, 1), day(2012, 7, 1), day(2013, 7, 1)
	in := []version{
		{key: "BK-1", id: 3, start: &d3},
		{key: "BK-1", id: 1, start: &d1},
		{key: "AA-1", id: 9, start: &d2},
		{key: "BK-1", id: 2, start: &d2},
	}
	got := versionEnds.Apply(in)

	type want struct {
		key string
		id  int
		end *time.Time
	}
	wants := []want{
		{"AA-1", 9, nil},
		{"BK-1", 1, ptrTime(day(2012, 6, 30))},
		{"BK-1", 2, ptrTime(day(2013, 6, 30))},
		{"BK-1", 3, nil},
	}
	if len(got) != len(wants) {
		t.Fatalf("len=%d want %d", len(got), len(wants))
	}
	for i, w := range wants {
		if got[i].key != w.key || got[i].id != w.id || !sameTime(got[i].end, w.end) {
			t.Errorf("row %d: got %s/%d end=%v want %s/%d end=%v", i, got[i].key, got[i].id, got[i].end, w.key, w.id, w.end)
		}
	}
	for _, v := range in {
		if v.end != nil {
			t.Fatal("input mutated")
		}
	}
}

func TestEndDatesNullStartFirst(t *testing.T) {
	d := day(2012, 1, 1)
	in := []version{
		{key: "K", id: 1, start: &d},
		{key: "K", id: 2, start: nil},
	}
	got := versionEnds.Apply(in)
	if got[0].id != 2 || !sameTime(got[0].end, ptrTime(day(2011, 12, 31))) {
		t.Fatalf("null-start version: %+v", got[0])
	}
	if got[1].end != nil {
		t.Fatalf("last version should be open-ended: %+v", got[1])
	}
}

func TestEndDatesEqualStarts(t *testing.T) {
	d := day(2012, 1, 1)
	in := []version{
		{key: "K", id: 2, start: &d},
		{key: "K", id: 1, start: &d},
	}
	got := versionEnds.Apply(in)
	if got[0].id != 1 || !sameTime(got[0].end, ptrTime(day(2011, 12, 31))) {
		t.Fatalf("tie broken wrong: %+v", got[0])
	}
}

func TestEndDatesEndsBeforeNextStart(t *testing.T) {
	d1, d2 := day(2020, 2, 28), day(2020, 3, 1)
	got := versionEnds.Apply([]version{{key: "K", id: 1, start: &d1}, {key: "K", id: 2, start: &d2}})
	if !got[0].end.Before(*got[1].start) || got[0].end.Before(*got[0].start) {
		t.Fatalf("bad range: %v..%v next %v", got[0].start, got[0].end, got[1].start)
	}
	if !got[0].end.Equal(day(2020, 2, 29)) {
		t.Fatalf("leap day end=%v", got[0].end)
	}
}
