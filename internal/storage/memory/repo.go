// Package memory is an in-process storage backend. Repositories opened with
// the same non-empty DSN share one store, so a staging run and a curation run
// in the same process see each other's tables.
package memory

import (
	"context"
	"fmt"
	"sync"

	"dwh/internal/schema"
	"dwh/internal/storage"
)

type store struct {
	mu     sync.RWMutex
	tables map[string]*table
}

type table struct {
	def  schema.Table
	rows [][]any
}

var (
	namedMu sync.Mutex
	named   = map[string]*store{}
)

// Repository keeps tables in maps guarded by a RWMutex.
type Repository struct {
	s *store
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository returns a repository for dsn. An empty DSN gets a private
// store.
func NewRepository(dsn string) *Repository {
	if dsn == "" {
		return &Repository{s: &store{tables: map[string]*table{}}}
	}
	namedMu.Lock()
	defer namedMu.Unlock()
	s, ok := named[dsn]
	if !ok {
		s = &store{tables: map[string]*table{}}
		named[dsn] = s
	}
	return &Repository{s: s}
}

// Reset drops the shared store registered under dsn.
func Reset(dsn string) {
	namedMu.Lock()
	delete(named, dsn)
	namedMu.Unlock()
}

func init() {
	storage.Register("memory", func(_ context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(cfg.DSN), nil
	})
}

func (r *Repository) EnsureTables(_ context.Context, tables []schema.Table) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range tables {
		if _, ok := r.s.tables[t.FQN()]; !ok {
			r.s.tables[t.FQN()] = &table{def: t}
		}
	}
	return nil
}

// ReadTable returns copies of the committed rows of t.
func (r *Repository) ReadTable(_ context.Context, t schema.Table) ([][]any, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tb, ok := r.s.tables[t.FQN()]
	if !ok {
		return nil, fmt.Errorf("memory: table %s does not exist", t.FQN())
	}
	return copyRows(tb.rows), nil
}

// Begin opens a snapshot. Touched tables are staged privately and swapped in
// on Commit.
func (r *Repository) Begin(context.Context) (storage.Snapshot, error) {
	return &snapshot{s: r.s, staged: map[string][][]any{}}, nil
}

// Close is a no-op; shared stores live until Reset.
func (r *Repository) Close() {}

type snapshot struct {
	s      *store
	staged map[string][][]any
	done   bool
}

func (sn *snapshot) exists(t schema.Table) error {
	sn.s.mu.RLock()
	defer sn.s.mu.RUnlock()
	if _, ok := sn.s.tables[t.FQN()]; !ok {
		return fmt.Errorf("memory: table %s does not exist", t.FQN())
	}
	return nil
}

func (sn *snapshot) Truncate(_ context.Context, t schema.Table) error {
	if sn.done {
		return fmt.Errorf("memory: snapshot already finished")
	}
	if err := sn.exists(t); err != nil {
		return err
	}
	sn.staged[t.FQN()] = [][]any{}
	return nil
}

func (sn *snapshot) Append(_ context.Context, t schema.Table, rows [][]any) (int64, error) {
	if sn.done {
		return 0, fmt.Errorf("memory: snapshot already finished")
	}
	if err := sn.exists(t); err != nil {
		return 0, err
	}
	for i, row := range rows {
		if len(row) != len(t.Columns) {
			return 0, fmt.Errorf("memory: %s row %d has %d values, want %d", t.FQN(), i, len(row), len(t.Columns))
		}
	}
	cur, ok := sn.staged[t.FQN()]
	if !ok {
		sn.s.mu.RLock()
		cur = copyRows(sn.s.tables[t.FQN()].rows)
		sn.s.mu.RUnlock()
	}
	sn.staged[t.FQN()] = append(cur, copyRows(rows)...)
	return int64(len(rows)), nil
}

func (sn *snapshot) Commit(context.Context) error {
	if sn.done {
		return fmt.Errorf("memory: snapshot already finished")
	}
	sn.done = true
	sn.s.mu.Lock()
	defer sn.s.mu.Unlock()
	for fqn, rows := range sn.staged {
		if tb, ok := sn.s.tables[fqn]; ok {
			tb.rows = rows
		}
	}
	return nil
}

func (sn *snapshot) Rollback(context.Context) error {
	sn.done = true
	sn.staged = nil
	return nil
}

func copyRows(in [][]any) [][]any {
	out := make([][]any, len(in))
	for i, r := range in {
		out[i] = append([]any(nil), r...)
	}
	return out
}
