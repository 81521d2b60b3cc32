package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"dwh/internal/ddl"
	"dwh/internal/schema"
	"dwh/internal/storage"
)

// Repository is a database/sql backed storage.Repository.
type Repository struct {
	db *sql.DB
	d  Dialect
}

var _ storage.Repository = (*Repository)(nil)

// Open opens dsn with the dialect's driver and pings it.
func Open(ctx context.Context, d Dialect, dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" && !d.AllowEmptyDSN {
		return nil, fmt.Errorf("%s: DSN must not be empty", d.Name)
	}
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", d.Name, err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", d.Name, err)
	}
	return New(db, d), nil
}

// New wraps an open *sql.DB.
func New(db *sql.DB, d Dialect) *Repository { return &Repository{db: db, d: d} }

// DB exposes the pool for backend-specific setup.
func (r *Repository) DB() *sql.DB { return r.db }

// Dialect returns the repository's dialect.
func (r *Repository) Dialect() Dialect { return r.d }

// Close closes the pool.
func (r *Repository) Close() { _ = r.db.Close() }

// EnsureTables creates layer schemas and missing tables.
func (r *Repository) EnsureTables(ctx context.Context, tables []schema.Table) error {
	seen := map[string]bool{}
	for _, t := range tables {
		if r.d.FlattenSchemas || r.d.CreateSchema == nil || seen[t.Layer] {
			continue
		}
		seen[t.Layer] = true
		if stmt := r.d.CreateSchema(t.Layer); stmt != "" {
			if _, err := r.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%s: create schema %s: %w", r.d.Name, t.Layer, err)
			}
		}
	}

	for _, t := range tables {
		def := ddl.FromTable(r.d.QualifiedName(t), t, r.d.MapType)
		stmt, err := ddl.BuildCreateTableSQL(def, ddl.Options{
			Quote:       r.d.Quote,
			IfNotExists: r.d.CreateTable == nil,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", r.d.Name, err)
		}
		if r.d.CreateTable != nil {
			stmt = r.d.CreateTable(r.d.Physical(t), stmt)
		}
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: create table %s: %w", r.d.Name, t.FQN(), err)
		}
	}
	return nil
}

func (r *Repository) columnList(t schema.Table) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = r.d.Quote(c.Name)
	}
	return strings.Join(cols, ", ")
}

// ReadTable returns every row of t.
func (r *Repository) ReadTable(ctx context.Context, t schema.Table) ([][]any, error) {
	q := fmt.Sprintf("SELECT %s FROM %s", r.columnList(t), r.d.QualifiedName(t))
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", r.d.Name, t.FQN(), err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(t.Columns))
		ptrs := make([]any, len(t.Columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%s: scan %s: %w", r.d.Name, t.FQN(), err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", r.d.Name, t.FQN(), err)
	}
	return out, nil
}

// Begin opens a transaction-backed snapshot.
func (r *Repository) Begin(ctx context.Context) (storage.Snapshot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", r.d.Name, err)
	}
	return &snapshot{r: r, tx: tx}, nil
}

type snapshot struct {
	r  *Repository
	tx *sql.Tx
}

func (s *snapshot) Truncate(ctx context.Context, t schema.Table) error {
	// DELETE rather than TRUNCATE: it is transactional on every engine.
	if _, err := s.tx.ExecContext(ctx, "DELETE FROM "+s.r.d.QualifiedName(t)); err != nil {
		return fmt.Errorf("%s: delete %s: %w", s.r.d.Name, t.FQN(), err)
	}
	return nil
}

func (s *snapshot) Append(ctx context.Context, t schema.Table, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	for i, row := range rows {
		if len(row) != len(t.Columns) {
			return 0, fmt.Errorf("%s: %s row %d has %d values, want %d", s.r.d.Name, t.FQN(), i, len(row), len(t.Columns))
		}
	}
	if enc := s.r.d.Encode; enc != nil {
		encoded := make([][]any, len(rows))
		for i, row := range rows {
			e := make([]any, len(row))
			for j, v := range row {
				e[j] = enc(t.Columns[j].Kind, v)
			}
			encoded[i] = e
		}
		rows = encoded
	}
	if s.r.d.Bulk != nil {
		return s.r.d.Bulk(ctx, s.tx, s.r.d.Physical(t), t.ColumnNames(), rows)
	}
	return s.insert(ctx, t, rows)
}

// insert writes rows with multi-row INSERT statements sized to MaxParams.
func (s *snapshot) insert(ctx context.Context, t schema.Table, rows [][]any) (int64, error) {
	width := len(t.Columns)
	perStmt := len(rows)
	if s.r.d.MaxParams > 0 {
		perStmt = max(1, s.r.d.MaxParams/width)
	}

	head := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", s.r.d.QualifiedName(t), s.r.columnList(t))
	var total int64
	for start := 0; start < len(rows); start += perStmt {
		chunk := rows[start:min(start+perStmt, len(rows))]

		var sb strings.Builder
		sb.WriteString(head)
		args := make([]any, 0, len(chunk)*width)
		n := 0
		for i, row := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteByte('(')
			for j := range row {
				if j > 0 {
					sb.WriteString(", ")
				}
				n++
				sb.WriteString(s.r.d.Placeholder(n))
			}
			sb.WriteByte(')')
			args = append(args, row...)
		}

		res, err := s.tx.ExecContext(ctx, sb.String(), args...)
		if err != nil {
			return total, fmt.Errorf("%s: insert %s: %w", s.r.d.Name, t.FQN(), err)
		}
		if affected, err := res.RowsAffected(); err == nil {
			total += affected
		} else {
			total += int64(len(chunk))
		}
	}
	return total, nil
}

func (s *snapshot) Commit(context.Context) error {
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", s.r.d.Name, err)
	}
	return nil
}

func (s *snapshot) Rollback(context.Context) error {
	err := s.tx.Rollback()
	if err == nil || errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	log.Printf("%s: rollback failed: %v", s.r.d.Name, err)
	return fmt.Errorf("%s: rollback: %w", s.r.d.Name, err)
}
