// Package sqldb implements storage.Repository on top of database/sql. Backends
// that speak database/sql (mssql, mysql, sqlite, duckdb) differ only in their
// Dialect: quoting, placeholders, type mapping, and an optional bulk path.
package sqldb

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"dwh/internal/schema"
)

// BulkFn writes rows into table inside tx using a backend-native bulk API.
// table is the physical name as returned by Dialect.Physical (unquoted parts).
type BulkFn func(ctx context.Context, tx *sql.Tx, table []string, columns []string, rows [][]any) (int64, error)

// Dialect captures what differs between database/sql backends.
type Dialect struct {
	Name   string
	Driver string

	// Quote quotes one identifier part.
	Quote func(string) string

	// Placeholder returns the n-th (1-based) bind parameter.
	Placeholder func(n int) string

	// MapType maps a logical kind to a column type.
	MapType func(schema.Kind) string

	// FlattenSchemas stores layer tables as "<layer>_<name>" in the default
	// schema, for engines without schemas.
	FlattenSchemas bool

	// CreateSchema returns the statement creating layer, or "" when the
	// backend needs none.
	CreateSchema func(layer string) string

	// CreateTable wraps a rendered CREATE TABLE so it is a no-op when the
	// table exists. nil means the engine supports IF NOT EXISTS.
	CreateTable func(physical []string, stmt string) string

	// MaxParams bounds bind parameters per INSERT. 0 means unlimited.
	MaxParams int

	// Bulk, when set, replaces multi-row INSERT.
	Bulk BulkFn

	// AllowEmptyDSN accepts "" (an in-memory database for embedded engines).
	AllowEmptyDSN bool

	// Encode converts a value before it is bound. nil binds values as-is.
	Encode func(kind schema.Kind, v any) any
}

// Physical returns the unquoted parts of t's physical name.
func (d Dialect) Physical(t schema.Table) []string {
	if d.FlattenSchemas {
		return []string{t.Layer + "_" + t.Name}
	}
	return []string{t.Layer, t.Name}
}

// QualifiedName returns t's quoted physical name.
func (d Dialect) QualifiedName(t schema.Table) string {
	parts := d.Physical(t)
	q := make([]string, len(parts))
	for i, p := range parts {
		q[i] = d.Quote(p)
	}
	return strings.Join(q, ".")
}

// DoubleQuote is the ANSI identifier quote.
func DoubleQuote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// QuestionMark is the ? placeholder style.
func QuestionMark(int) string { return "?" }

// Dollar is the $n placeholder style.
func Dollar(n int) string { return "$" + strconv.Itoa(n) }
