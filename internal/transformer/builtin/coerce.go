package builtin

import (
	"math"
	"strconv"
	"time"

	"dwh/internal/schema"
)

// Accepted range for integer-encoded dates, inclusive.
var (
	MinIntDate = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	MaxIntDate = time.Date(2050, 1, 1, 0, 0, 0, 0, time.UTC)
)

// ParseInt parses a cleaned integer. nil, blank, and garbage return ok=false.
func ParseInt(raw *string) (int64, bool) {
	s := CleanPtr(raw)
	if s == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(*s, 10, 64)
	if err != nil {
		// Extract tools sometimes write integers as "42.0".
		f, ferr := strconv.ParseFloat(*s, 64)
		if ferr != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, false
		}
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, false
		}
		return int64(f), true
	}
	return n, true
}

// ParseFloat parses a cleaned finite number.
func ParseFloat(raw *string) (float64, bool) {
	s := CleanPtr(raw)
	if s == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(*s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseIntDate converts a YYYYMMDD integer-encoded date. Anything that is not
// exactly eight digits, is zero, is not a real calendar day, or falls
// outside [MinIntDate, MaxIntDate] yields nil. It never returns an error.
func ParseIntDate(raw *string) *time.Time {
	s := CleanPtr(raw)
	if s == nil || len(*s) != 8 {
		return nil
	}
	for i := 0; i < len(*s); i++ {
		if (*s)[i] < '0' || (*s)[i] > '9' {
			return nil
		}
	}
	if *s == "00000000" {
		return nil
	}
	t, err := time.Parse("20060102", *s)
	if err != nil {
		return nil
	}
	if t.Before(MinIntDate) || t.After(MaxIntDate) {
		return nil
	}
	return &t
}

// ParseTimestamp reads a textual date or timestamp at full precision.
// Eight-digit integers are accepted too. Unparseable input yields nil.
func ParseTimestamp(raw *string) *time.Time {
	s := CleanPtr(raw)
	if s == nil {
		return nil
	}
	if len(*s) == 8 {
		if t := ParseIntDate(s); t != nil {
			return t
		}
	}
	t, err := schema.Timestamp(*s)
	if err != nil {
		return nil
	}
	return t
}

// ParseDate is ParseTimestamp truncated to the calendar day.
func ParseDate(raw *string) *time.Time {
	t := ParseTimestamp(raw)
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// Cost coerces a product cost to a non-negative number: null, unparseable,
// and negative inputs all become 0.
func Cost(raw *string) float64 {
	f, ok := ParseFloat(raw)
	if !ok || f < 0 {
		return 0
	}
	return f
}
