// Package mysql implements the warehouse store on MySQL. Layers map to MySQL
// databases; rows are written with multi-row INSERT inside one transaction.
package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"dwh/internal/schema"
	"dwh/internal/storage/sqldb"
)

// Config holds MySQL repository configuration.
type Config struct {
	DSN string
}

// Dialect is the MySQL flavour of sqldb.
var Dialect = sqldb.Dialect{
	Name:        "mysql",
	Driver:      "mysql",
	Quote:       myIdent,
	Placeholder: sqldb.QuestionMark,
	MapType:     MapType,
	CreateSchema: func(layer string) string {
		return "CREATE DATABASE IF NOT EXISTS " + myIdent(layer)
	},
	MaxParams: 60000,
}

// MapType maps a logical kind to a MySQL column type.
func MapType(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "BIGINT"
	case schema.KindFloat:
		return "DOUBLE"
	case schema.KindDate:
		return "DATE"
	case schema.KindTimestamp:
		return "DATETIME(6)"
	default:
		return "LONGTEXT"
	}
}

// NormalizeDSN parses dsn and forces the options the store relies on:
// DATE/DATETIME scanned as time.Time.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// NewRepository connects and returns a Close function.
func NewRepository(ctx context.Context, cfg Config) (*sqldb.Repository, func(), error) {
	dsn, err := NormalizeDSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	r, err := sqldb.Open(ctx, Dialect, dsn)
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}

// myIdent backtick-quotes an identifier, doubling embedded backticks.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }
