package storage

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

type trackedRow struct {
	v     []any
	frees *int32
}

func (r *trackedRow) Values() []any { return r.v }
func (r *trackedRow) Free()         { atomic.AddInt32(r.frees, 1) }

func feed(n int, frees *int32) chan *trackedRow {
	in := make(chan *trackedRow, n)
	for i := 0; i < n; i++ {
		in <- &trackedRow{v: []any{i, "x"}, frees: frees}
	}
	close(in)
	return in
}

// TestLoadBatches_Basic verifies batching, totals, and that every row is freed.
func TestLoadBatches_Basic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		rows        int
		batchSize   int
		wantBatches []int
	}{
		{name: "empty", rows: 0, batchSize: 4, wantBatches: nil},
		{name: "exact_multiple", rows: 6, batchSize: 3, wantBatches: []int{3, 3}},
		{name: "partial_tail", rows: 7, batchSize: 3, wantBatches: []int{3, 3, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var frees int32
			var got []int
			copyFn := func(_ context.Context, cols []string, rows [][]any) (int64, error) {
				if !reflect.DeepEqual(cols, []string{"c1", "c2"}) {
					t.Errorf("columns=%v", cols)
				}
				got = append(got, len(rows))
				return int64(len(rows)), nil
			}
			total, err := LoadBatches(context.Background(), "bronze.t", []string{"c1", "c2"}, feed(tt.rows, &frees), tt.batchSize, copyFn)
			if err != nil {
				t.Fatalf("LoadBatches: %v", err)
			}
			if total != int64(tt.rows) {
				t.Fatalf("total=%d want %d", total, tt.rows)
			}
			if !reflect.DeepEqual(got, tt.wantBatches) {
				t.Fatalf("batches=%v want %v", got, tt.wantBatches)
			}
			if int(frees) != tt.rows {
				t.Fatalf("frees=%d want %d", frees, tt.rows)
			}
		})
	}
}

func TestLoadBatches_ArgValidation(t *testing.T) {
	t.Parallel()

	var frees int32
	noop := func(context.Context, []string, [][]any) (int64, error) { return 0, nil }
	if _, err := LoadBatches(context.Background(), "t", nil, feed(0, &frees), 0, noop); err == nil {
		t.Fatal("expected error for batchSize <= 0")
	}
	if _, err := LoadBatches(context.Background(), "t", nil, feed(0, &frees), 1, nil); err == nil {
		t.Fatal("expected error for nil copyFn")
	}
}

// TestLoadBatches_ErrorPropagation ensures the first copy error stops the load
// and the failed batch is still freed.
func TestLoadBatches_ErrorPropagation(t *testing.T) {
	t.Parallel()

	var frees int32
	wantErr := errors.New("copy failed")
	calls := 0
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		calls++
		if calls == 2 {
			return 0, wantErr
		}
		return int64(len(rows)), nil
	}

	total, err := LoadBatches(context.Background(), "t", []string{"c"}, feed(5, &frees), 2, copyFn)
	if !errors.Is(err, wantErr) {
		t.Fatalf("want %v, got %v", wantErr, err)
	}
	if total != 2 {
		t.Fatalf("total=%d want 2", total)
	}
	if frees != 4 {
		t.Fatalf("frees=%d want 4", frees)
	}
}

// TestLoadBatches_ContextCancel checks the loader exits on cancellation.
func TestLoadBatches_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan *trackedRow)
	errCh := make(chan error, 1)
	go func() {
		_, err := LoadBatches(ctx, "t", []string{"c"}, in, 2, func(context.Context, []string, [][]any) (int64, error) { return 0, nil })
		errCh <- err
	}()
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err=%v want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("LoadBatches did not return after cancel")
	}
}
