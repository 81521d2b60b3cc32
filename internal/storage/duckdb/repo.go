//go:build cgo

// Package duckdb implements the warehouse store on an embedded DuckDB file,
// handy for local analysis of the curated layer without a server.
package duckdb

import (
	"context"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"dwh/internal/schema"
	"dwh/internal/storage/sqldb"
)

// Config holds DuckDB repository configuration. An empty DSN opens an
// in-memory database.
type Config struct {
	DSN string
}

// Dialect is the DuckDB flavour of sqldb.
var Dialect = sqldb.Dialect{
	Name:        "duckdb",
	Driver:      "duckdb",
	Quote:       sqldb.DoubleQuote,
	Placeholder: sqldb.QuestionMark,
	MapType:     MapType,
	CreateSchema: func(layer string) string {
		return "CREATE SCHEMA IF NOT EXISTS " + sqldb.DoubleQuote(layer)
	},
	MaxParams:     30000,
	AllowEmptyDSN: true,
	Encode: func(_ schema.Kind, v any) any {
		if t, ok := v.(time.Time); ok {
			return t.UTC()
		}
		return v
	},
}

// MapType maps a logical kind to a DuckDB column type.
func MapType(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "BIGINT"
	case schema.KindFloat:
		return "DOUBLE"
	case schema.KindDate:
		return "DATE"
	case schema.KindTimestamp:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

// NewRepository opens the database file and returns a Close function.
func NewRepository(ctx context.Context, cfg Config) (*sqldb.Repository, func(), error) {
	dsn := cfg.DSN
	if dsn == ":memory:" {
		dsn = ""
	}
	r, err := sqldb.Open(ctx, Dialect, dsn)
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}
