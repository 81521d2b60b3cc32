// Package sqlite implements the warehouse store on SQLite (modernc.org/sqlite,
// pure Go). SQLite has no schemas, so layer tables are flattened to
// "<layer>_<table>" in the main database.
package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"dwh/internal/schema"
	"dwh/internal/storage/sqldb"
)

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:dwh.db?_pragma=busy_timeout(5000)"
	//   ":memory:"
	DSN string
}

// timeLayout is how timestamps are stored; schema.Timestamp parses it back.
const timeLayout = "2006-01-02 15:04:05.999999999-07:00"

// Dialect is the SQLite flavour of sqldb.
var Dialect = sqldb.Dialect{
	Name:           "sqlite",
	Driver:         "sqlite",
	Quote:          sqldb.DoubleQuote,
	Placeholder:    sqldb.QuestionMark,
	MapType:        MapType,
	FlattenSchemas: true,
	MaxParams:      32766,
	Encode:         encode,
}

// MapType maps a logical kind to a SQLite declared type.
func MapType(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "INTEGER"
	case schema.KindFloat:
		return "REAL"
	case schema.KindDate:
		return "DATE"
	case schema.KindTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// encode stores dates and timestamps as ISO text so reads are stable across
// driver versions.
func encode(k schema.Kind, v any) any {
	t, ok := v.(time.Time)
	if !ok {
		return v
	}
	if k == schema.KindDate {
		return t.Format(schema.DateLayout)
	}
	return t.UTC().Format(timeLayout)
}

// NewRepository opens the database and returns a repository plus its close
// function.
func NewRepository(ctx context.Context, cfg Config) (*sqldb.Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	r, err := sqldb.Open(ctx, Dialect, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	if isMemory(cfg.DSN) {
		// Every pooled connection to ":memory:" is a separate database.
		r.DB().SetMaxOpenConns(1)
	}
	_, _ = r.DB().ExecContext(ctx, "PRAGMA busy_timeout = 5000")
	return r, r.Close, nil
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}
