// Package mssql implements the warehouse store on Microsoft SQL Server. Rows
// are written with the go-mssqldb bulk copy API inside the snapshot's
// transaction.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"dwh/internal/schema"
	"dwh/internal/storage/sqldb"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN string
}

// Dialect is the SQL Server flavour of sqldb.
var Dialect = sqldb.Dialect{
	Name:        "mssql",
	Driver:      "sqlserver",
	Quote:       msIdent,
	Placeholder: func(n int) string { return "@p" + strconv.Itoa(n) },
	MapType:     MapType,
	CreateSchema: func(layer string) string {
		return fmt.Sprintf("IF SCHEMA_ID(N'%s') IS NULL EXEC('CREATE SCHEMA %s')",
			strings.ReplaceAll(layer, "'", "''"), strings.ReplaceAll(msIdent(layer), "'", "''"))
	},
	CreateTable: func(physical []string, stmt string) string {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL %s",
			strings.ReplaceAll(msFQN(physical), "'", "''"), stmt)
	},
	MaxParams: 2000,
	Bulk:      bulkCopy,
}

// MapType maps a logical kind to a SQL Server column type.
func MapType(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "BIGINT"
	case schema.KindFloat:
		return "FLOAT"
	case schema.KindDate:
		return "DATE"
	case schema.KindTimestamp:
		return "DATETIME2"
	default:
		return "NVARCHAR(MAX)"
	}
}

// NewRepository validates the DSN, connects, and returns a Close function.
func NewRepository(ctx context.Context, cfg Config) (*sqldb.Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	r, err := sqldb.Open(ctx, Dialect, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}

// bulkCopy streams rows through an INSERT BULK statement prepared on tx.
func bulkCopy(ctx context.Context, tx *sql.Tx, table, columns []string, rows [][]any) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(msFQN(table), mssql.BulkOptions{Tablock: true}, columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// msIdent safely quotes a SQL Server identifier using [brackets], escaping ].
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// msFQN quotes name parts as [a].[b].
func msFQN(parts []string) string {
	q := make([]string, len(parts))
	for i, p := range parts {
		q[i] = msIdent(p)
	}
	return strings.Join(q, ".")
}
