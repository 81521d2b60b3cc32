package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical text form of a calendar date.
const DateLayout = "2006-01-02"

// dateLayouts are tried in order when a driver hands back a date as text.
// The last two cover the forms produced by modernc sqlite and fmt for
// time.Time values written without an explicit layout.
var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
}

// Text renders a loosely typed driver value as text. nil stays nil; strings
// are returned untouched (no trimming: raw fidelity matters in bronze).
func Text(v any) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = t
	case []byte:
		s = string(t)
	case *string:
		return t
	case int64:
		s = strconv.FormatInt(t, 10)
	case int32:
		s = strconv.FormatInt(int64(t), 10)
	case int:
		s = strconv.Itoa(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(t), 'f', -1, 32)
	case bool:
		s = strconv.FormatBool(t)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			s = t.Format(DateLayout)
		} else {
			s = t.Format("2006-01-02 15:04:05")
		}
	default:
		s = fmt.Sprint(t)
	}
	return &s
}

// Int reads an integer column value. Empty text is NULL.
func Int(v any) (*int64, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case int64:
		return &t, nil
	case int32:
		n := int64(t)
		return &n, nil
	case int:
		n := int64(t)
		return &n, nil
	case float64:
		if t != math.Trunc(t) {
			return nil, fmt.Errorf("%v is not integral", t)
		}
		n := int64(t)
		return &n, nil
	case string, []byte:
		s := strings.TrimSpace(*Text(t))
		if s == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		return &n, nil
	default:
		return nil, fmt.Errorf("type %T not int-convertible", v)
	}
}

// Float reads a numeric column value. Empty text is NULL.
func Float(v any) (*float64, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return &t, nil
	case float32:
		f := float64(t)
		return &f, nil
	case int64:
		f := float64(t)
		return &f, nil
	case int32:
		f := float64(t)
		return &f, nil
	case int:
		f := float64(t)
		return &f, nil
	case string, []byte:
		s := strings.TrimSpace(*Text(t))
		if s == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("type %T not float-convertible", v)
	}
}

// Date reads a date or timestamp column value, truncated to the calendar day
// in UTC. Empty text is NULL.
func Date(v any) (*time.Time, error) {
	t, err := Timestamp(v)
	if err != nil || t == nil {
		return t, err
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d, nil
}

// Timestamp reads a timestamp column value. Empty text is NULL.
func Timestamp(v any) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &t, nil
	case string, []byte:
		s := strings.TrimSpace(*Text(t))
		if s == "" {
			return nil, nil
		}
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return &ts, nil
			}
		}
		return nil, fmt.Errorf("invalid date %q", s)
	default:
		return nil, fmt.Errorf("type %T not date-convertible", v)
	}
}

// nullable helpers used when building silver rows.

func strVal(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func intVal(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatVal(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func timeVal(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}

// deref returns "" for a nil pointer.
func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Canonical renders values as a stable, type-aware string. It is the sort key
// for deterministic output ordering and the input to content fingerprints,
// so equal rows always render identically regardless of driver.
func Canonical(vals []any) string {
	var b strings.Builder
	for i, v := range vals {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		switch x := v.(type) {
		case nil:
			b.WriteByte(0)
		case string:
			b.WriteString(x)
		case int64:
			b.WriteString(strconv.FormatInt(x, 10))
		case int:
			b.WriteString(strconv.Itoa(x))
		case float64:
			b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
		case time.Time:
			b.WriteString(x.UTC().Format(time.RFC3339Nano))
		default:
			fmt.Fprint(&b, x)
		}
	}
	return b.String()
}
