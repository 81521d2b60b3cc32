// Package postgres implements the warehouse store on Postgres using pgx v5.
// A snapshot is one pgx transaction: each table is emptied with DELETE and
// refilled with COPY, and COMMIT makes the new content visible atomically.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"dwh/internal/ddl"
	"dwh/internal/schema"
	"dwh/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN string // connection string for pgxpool
}

// Repository is a Postgres-backed storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Repository{pool: pool}, pool.Close, nil
}

// MapType maps a logical kind to a Postgres type.
func MapType(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "BIGINT"
	case schema.KindFloat:
		return "DOUBLE PRECISION"
	case schema.KindDate:
		return "DATE"
	case schema.KindTimestamp:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

// EnsureTables creates the layer schemas and any missing table.
func (r *Repository) EnsureTables(ctx context.Context, tables []schema.Table) error {
	seen := map[string]bool{}
	for _, t := range tables {
		if seen[t.Layer] {
			continue
		}
		seen[t.Layer] = true
		if _, err := r.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgIdent(t.Layer)); err != nil {
			return fmt.Errorf("postgres: create schema %s: %w", t.Layer, wrapPgErr(err))
		}
	}
	for _, t := range tables {
		stmt, err := ddl.BuildCreateTableSQL(
			ddl.FromTable(pgFQN(t), t, MapType),
			ddl.Options{Quote: pgIdent, IfNotExists: true},
		)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: create table %s: %w", t.FQN(), wrapPgErr(err))
		}
	}
	return nil
}

// ReadTable returns every row of t.
func (r *Repository) ReadTable(ctx context.Context, t schema.Table) ([][]any, error) {
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(mapIdent(t.ColumnNames()), ", "), pgFQN(t))
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: read %s: %w", t.FQN(), wrapPgErr(err))
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("postgres: scan %s: %w", t.FQN(), err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read %s: %w", t.FQN(), wrapPgErr(err))
	}
	return out, nil
}

// Begin opens a transaction-backed snapshot.
func (r *Repository) Begin(ctx context.Context) (storage.Snapshot, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &snapshot{tx: tx}, nil
}

type snapshot struct {
	tx pgx.Tx
}

func (s *snapshot) Truncate(ctx context.Context, t schema.Table) error {
	if _, err := s.tx.Exec(ctx, "DELETE FROM "+pgFQN(t)); err != nil {
		return fmt.Errorf("postgres: delete %s: %w", t.FQN(), wrapPgErr(err))
	}
	return nil
}

func (s *snapshot) Append(ctx context.Context, t schema.Table, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := s.tx.CopyFrom(ctx, splitFQN(t), t.ColumnNames(), pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("postgres: copy into %s: %w", t.FQN(), wrapPgErr(err))
	}
	return n, nil
}

func (s *snapshot) Commit(ctx context.Context) error {
	if err := s.tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", wrapPgErr(err))
	}
	return nil
}

func (s *snapshot) Rollback(ctx context.Context) error {
	err := s.tx.Rollback(ctx)
	if err == nil || errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return fmt.Errorf("postgres: rollback: %w", err)
}

// wrapPgErr surfaces the server's detail and SQLSTATE when present.
func wrapPgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s, sqlstate %s)", err, pgErr.Detail, pgErr.SQLState())
	}
	return err
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a table as "layer"."name".
func pgFQN(t schema.Table) string { return pgIdent(t.Layer) + "." + pgIdent(t.Name) }

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}

// splitFQN converts a table into a pgx.Identifier {"layer","name"}.
func splitFQN(t schema.Table) pgx.Identifier { return pgx.Identifier{t.Layer, t.Name} }
