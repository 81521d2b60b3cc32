package storage

import (
	"context"
	"fmt"
	"log"
	"time"
)

// CopyFn is a backend's bulk insert primitive. It inserts rows aligned to
// columns and returns the number of rows the backend reports as written.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// PooledRow is a positional row owned by a pool. Values must stay valid until
// Free is called; Free is called exactly once, after the row's batch has
// been handed to the backend.
type PooledRow interface {
	Values() []any
	Free()
}

// LoadBatches drains pooled rows from in, groups them into batches of
// batchSize, and calls copyFn once per non-empty batch. Rows are freed after
// their batch is flushed, whether or not the flush succeeded.
//
// It returns the running total and the first error. On cancellation it
// returns (total, ctx.Err()); rows still queued in in are left to the caller.
func LoadBatches[R PooledRow](
	ctx context.Context,
	table string,
	columns []string,
	in <-chan R,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	var (
		total   int64
		batches int
		pending = make([]R, 0, batchSize)
		slab    = make([][]any, 0, batchSize)
		start   = time.Now()
		last    = start
	)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		slab = slab[:0]
		for _, r := range pending {
			slab = append(slab, r.Values())
		}
		n, err := copyFn(ctx, columns, slab)
		total += n
		for _, r := range pending {
			r.Free()
		}
		pending = pending[:0]
		if err != nil {
			log.Printf("loader: table=%s copy failed after=%d total=%d err=%v", table, n, total, err)
			return err
		}

		batches++
		now := time.Now()
		rps := float64(0)
		if d := now.Sub(last); d > 0 {
			rps = float64(n) / d.Seconds()
		}
		log.Printf("loader: table=%s batch #%d rps=%.0f inserted=%d total_inserted=%d elapsed=%s",
			table, batches, rps, n, total, now.Sub(start).Truncate(time.Millisecond))
		last = now
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			for _, r := range pending {
				r.Free()
			}
			return total, ctx.Err()

		case r, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, err
				}
				return total, nil
			}
			pending = append(pending, r)
			if len(pending) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}
