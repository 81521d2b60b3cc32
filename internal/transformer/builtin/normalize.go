// Package builtin contains the reusable, entity-agnostic rules of the curation
// engine: string cleaning, fixed code→label lookup tables, type coercion,
// business-key de-duplication, windowed end-date inference, and the
// sales/price consistency repair.
//
// Every function here is pure: inputs are never mutated and the same input
// always yields the same output, so the rules can be tested independently of
// the transform pipeline.
package builtin

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// NA is the sentinel written for unmapped, blank, or null categorical input.
const NA = "n/a"

// HasEdgeSpace reports whether s starts or ends with a Unicode space. It lets
// hot paths skip TrimSpace allocations for already-clean values.
func HasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	if unicode.IsSpace(r) {
		return true
	}
	r, _ = utf8.DecodeLastRuneInString(s)
	return unicode.IsSpace(r)
}

// Clean returns the NFC-normalized, trimmed form of s. Non-breaking spaces
// count as whitespace.
func Clean(s string) string {
	if !norm.NFC.IsNormalString(s) {
		s = norm.NFC.String(s)
	}
	if HasEdgeSpace(s) {
		s = strings.TrimSpace(s)
	}
	return s
}

// CleanPtr cleans *p. nil and blank both become nil.
func CleanPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := Clean(*p)
	if s == "" {
		return nil
	}
	return &s
}

// StripPrefix removes prefix from s when present (case-sensitive).
func StripPrefix(s, prefix string) string {
	return strings.TrimPrefix(s, prefix)
}

// StripRunes removes every occurrence of the given runes from s.
func StripRunes(s string, drop ...rune) string {
	if !strings.ContainsAny(s, string(drop)) {
		return s
	}
	return strings.Map(func(r rune) rune {
		for _, d := range drop {
			if r == d {
				return -1
			}
		}
		return r
	}, s)
}

// Lookup is an immutable code→label table with an explicit fallback. Codes
// are matched on their cleaned, upper-cased form.
type Lookup struct {
	name        string
	table       map[string]string
	fallback    string
	passthrough bool
}

// NewLookup builds a Lookup. The table is copied so later changes to the
// argument do not leak into the lookup.
func NewLookup(name string, table map[string]string, fallback string) Lookup {
	m := make(map[string]string, len(table))
	for k, v := range table {
		m[strings.ToUpper(Clean(k))] = v
	}
	return Lookup{name: name, table: m, fallback: fallback}
}

// WithPassthrough returns a copy of l that returns unmapped, non-blank input
// (cleaned) instead of the fallback. Blank and null input still map to the
// fallback.
func (l Lookup) WithPassthrough() Lookup {
	l.passthrough = true
	return l
}

// Name identifies the lookup in logs and audit findings.
func (l Lookup) Name() string { return l.name }

// Map translates raw into its label.
func (l Lookup) Map(raw *string) string {
	if raw == nil {
		return l.fallback
	}
	s := Clean(*raw)
	if s == "" {
		return l.fallback
	}
	if v, ok := l.table[strings.ToUpper(s)]; ok {
		return v
	}
	if l.passthrough {
		return s
	}
	return l.fallback
}

// MapString is Map for a non-null input.
func (l Lookup) MapString(raw string) string { return l.Map(&raw) }

// Labels returns the sorted set of values Map can produce, fallback
// included. Passthrough lookups can produce anything; their Labels only
// lists the mapped ones.
func (l Lookup) Labels() []string {
	seen := map[string]struct{}{l.fallback: {}}
	for _, v := range l.table {
		seen[v] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether label is one of l's Labels.
func (l Lookup) Contains(label string) bool {
	if label == l.fallback {
		return true
	}
	for _, v := range l.table {
		if v == label {
			return true
		}
	}
	return false
}

// The fixed lookup tables of the curated layer.
var (
	MaritalStatus = NewLookup("marital_status", map[string]string{
		"S":       "Single",
		"SINGLE":  "Single",
		"M":       "Married",
		"MARRIED": "Married",
	}, NA)

	Gender = NewLookup("gender", map[string]string{
		"F":      "Female",
		"FEMALE": "Female",
		"M":      "Male",
		"MALE":   "Male",
	}, NA)

	ProductLine = NewLookup("product_line", map[string]string{
		"M": "Mountain",
		"R": "Road",
		"S": "Other Sales",
		"T": "Touring",
	}, NA)

	Country = NewLookup("country", map[string]string{
		"DE":  "Germany",
		"US":  "United States",
		"USA": "United States",
	}, NA).WithPassthrough()

	Maintenance = NewLookup("maintenance", map[string]string{
		"YES": "Yes",
		"NO":  "No",
	}, NA)
)
