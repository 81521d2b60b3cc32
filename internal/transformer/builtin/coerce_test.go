package builtin

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func TestParseIntDate(t *testing.T) {
	tests := []struct {
		in   *string
		want *time.Time
	}{
		{sp("20101229"), ptrTime(day(2010, 12, 29))},
		{sp(" 20101229 "), ptrTime(day(2010, 12, 29))},
		{sp("19000101"), ptrTime(day(1900, 1, 1))},
		{sp("20500101"), ptrTime(day(2050, 1, 1))},
		{sp("20500102"), nil},
		{sp("18991231"), nil},
		{sp("0"), nil},
		{sp("00000000"), nil},
		{sp("5489"), nil},
		{sp("32154"), nil},
		{sp("201012290"), nil},
		{sp("20100230"), nil},
		{sp("2010-12-"), nil},
		{sp(""), nil},
		{nil, nil},
	}
	for _, tt := range tests {
		got := ParseIntDate(tt.in)
		if !sameTime(got, tt.want) {
			t.Errorf("ParseIntDate(%v)=%v want %v", show(tt.in), got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   *string
		want *time.Time
	}{
		{sp("2003-07-01"), ptrTime(day(2003, 7, 1))},
		{sp("2003-07-01 13:45:00"), ptrTime(day(2003, 7, 1))},
		{sp("2003-07-01T13:45:00Z"), ptrTime(day(2003, 7, 1))},
		{sp("20030701"), ptrTime(day(2003, 7, 1))},
		{sp("not a date"), nil},
		{nil, nil},
	}
	for _, tt := range tests {
		got := ParseDate(tt.in)
		if !sameTime(got, tt.want) {
			t.Errorf("ParseDate(%v)=%v want %v", show(tt.in), got, tt.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   *string
		want *time.Time
	}{
		{sp("2003-07-01 13:45:00"), ptrTime(time.Date(2003, 7, 1, 13, 45, 0, 0, time.UTC))},
		{sp("2003-07-01"), ptrTime(day(2003, 7, 1))},
		{sp("20030701"), ptrTime(day(2003, 7, 1))},
		{sp("not a date"), nil},
		{nil, nil},
	}
	for _, tt := range tests {
		got := ParseTimestamp(tt.in)
		if !sameTime(got, tt.want) {
			t.Errorf("ParseTimestamp(%v)=%v want %v", show(tt.in), got, tt.want)
		}
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in     *string
		want   int64
		wantOK bool
	}{
		{sp("42"), 42, true},
		{sp(" 42 "), 42, true},
		{sp("42.0"), 42, true},
		{sp("42.5"), 0, false},
		{sp("1e20"), 0, false},
		{sp("-1e20"), 0, false},
		{sp("9223372036854775807"), 9223372036854775807, true},
		{sp("abc"), 0, false},
		{sp(""), 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseInt(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseInt(%v)=(%d,%v) want (%d,%v)", show(tt.in), got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCost(t *testing.T) {
	tests := []struct {
		in   *string
		want float64
	}{
		{sp("12.5"), 12.5},
		{sp("0"), 0},
		{sp("-3"), 0},
		{sp("NaN"), 0},
		{sp("n/a"), 0},
		{nil, 0},
	}
	for _, tt := range tests {
		if got := Cost(tt.in); got != tt.want {
			t.Errorf("Cost(%v)=%v want %v", show(tt.in), got, tt.want)
		}
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func show(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return "\"" + *p + "\""
}
