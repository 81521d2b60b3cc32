// Package storage defines the backend-agnostic contracts the staging and
// curated loaders write through, plus a kind → factory registry that concrete
// backends populate from their init functions (see storage/all).
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"dwh/internal/schema"
)

// Repository is one warehouse connection.
type Repository interface {
	// EnsureTables creates missing schemas and tables. Existing tables are
	// left untouched.
	EnsureTables(ctx context.Context, tables []schema.Table) error

	// ReadTable returns every row of t in t's column order.
	ReadTable(ctx context.Context, t schema.Table) ([][]any, error)

	// Begin opens a snapshot. Nothing written through it is visible to
	// readers until Commit.
	Begin(ctx context.Context) (Snapshot, error)

	Close()
}

// Snapshot is an all-or-nothing unit of table replacements. A Snapshot must be
// used from a single goroutine.
type Snapshot interface {
	// Truncate removes every row of t inside the snapshot.
	Truncate(ctx context.Context, t schema.Table) error

	// Append inserts rows (aligned to t's columns) and returns the number of
	// rows the backend reports as written. Its shape matches CopyFn so it
	// can be fed by LoadBatches.
	Append(ctx context.Context, t schema.Table, rows [][]any) (int64, error)

	Commit(ctx context.Context) error

	// Rollback discards the snapshot. It is safe to call after Commit.
	Rollback(ctx context.Context) error
}

// Replace swaps the full content of t for rows inside snap, in batches of
// batchSize.
func Replace(ctx context.Context, snap Snapshot, t schema.Table, rows [][]any, batchSize int) (int64, error) {
	if err := snap.Truncate(ctx, t); err != nil {
		return 0, fmt.Errorf("truncate %s: %w", t.FQN(), err)
	}
	if batchSize <= 0 {
		batchSize = len(rows)
	}
	var total int64
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		n, err := snap.Append(ctx, t, rows[start:end])
		total += n
		if err != nil {
			return total, fmt.Errorf("append %s: %w", t.FQN(), err)
		}
	}
	return total, nil
}

// CopyInto adapts snap.Append for t to a CopyFn.
func CopyInto(snap Snapshot, t schema.Table) CopyFn {
	return func(ctx context.Context, _ []string, rows [][]any) (int64, error) {
		return snap.Append(ctx, t, rows)
	}
}

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
}

// Factory opens a Repository for a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register adds (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s (available: %s)", cfg.Kind, strings.Join(ListKinds(), ", "))
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
