package storage

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"dwh/internal/schema"
)

// fakeRepo is a minimal Repository implementation for tests.
type fakeRepo struct {
	closed bool
}

func (f *fakeRepo) EnsureTables(context.Context, []schema.Table) error { return nil }
func (f *fakeRepo) ReadTable(context.Context, schema.Table) ([][]any, error) {
	return nil, nil
}
func (f *fakeRepo) Begin(context.Context) (Snapshot, error) { return &recordingSnap{}, nil }
func (f *fakeRepo) Close()                                  { f.closed = true }

// recordingSnap records calls in order.
type recordingSnap struct {
	calls   []string
	batches []int
	failOn  int
}

func (s *recordingSnap) Truncate(_ context.Context, t schema.Table) error {
	s.calls = append(s.calls, "truncate "+t.FQN())
	return nil
}

func (s *recordingSnap) Append(_ context.Context, t schema.Table, rows [][]any) (int64, error) {
	s.calls = append(s.calls, "append "+t.FQN())
	s.batches = append(s.batches, len(rows))
	if s.failOn > 0 && len(s.batches) == s.failOn {
		return 0, errors.New("disk full")
	}
	return int64(len(rows)), nil
}

func (s *recordingSnap) Commit(context.Context) error   { s.calls = append(s.calls, "commit"); return nil }
func (s *recordingSnap) Rollback(context.Context) error { s.calls = append(s.calls, "rollback"); return nil }

func TestRegisterAndNew_Success(t *testing.T) {
	t.Parallel()

	kind := "fake"
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		return &fakeRepo{}, nil
	})

	repo, err := New(context.Background(), Config{Kind: kind})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if repo == nil {
		t.Fatalf("New returned nil repo")
	}

	found := false
	for _, k := range ListKinds() {
		if k == kind {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("registered kind %q not present in ListKinds: %v", kind, ListKinds())
	}
}

func TestNew_Unsupported(t *testing.T) {
	t.Parallel()

	Register("listed", func(ctx context.Context, cfg Config) (Repository, error) { return &fakeRepo{}, nil })
	_, err := New(context.Background(), Config{Kind: "does-not-exist"})
	if err == nil {
		t.Fatalf("expected error for unsupported kind")
	}
	// Other parallel tests register kinds too, so only check the shape.
	got := err.Error()
	if !strings.HasPrefix(got, "unsupported storage.kind=does-not-exist (available: ") || !strings.Contains(got, "listed") {
		t.Fatalf("error = %q, want the unknown kind and the registered ones", got)
	}
}

func TestRegister_OverrideAndErrors(t *testing.T) {
	t.Parallel()

	kind := "override"
	want := errors.New("boom")
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) { return &fakeRepo{}, nil })
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) { return nil, want })

	if _, err := New(context.Background(), Config{Kind: kind}); !errors.Is(err, want) {
		t.Fatalf("want %v, got %v", want, err)
	}
}

func TestListKinds_Snapshot(t *testing.T) {
	t.Parallel()

	Register("snap", func(ctx context.Context, cfg Config) (Repository, error) { return &fakeRepo{}, nil })
	a := ListKinds()
	a[0] = "mutated"
	if b := ListKinds(); reflect.DeepEqual(a, b) {
		t.Fatalf("ListKinds returned shared slice")
	}
}

func TestReplace(t *testing.T) {
	t.Parallel()

	tbl := schema.Table{Layer: "silver", Name: "t"}
	rows := make([][]any, 5)
	for i := range rows {
		rows[i] = []any{i}
	}

	snap := &recordingSnap{}
	n, err := Replace(context.Background(), snap, tbl, rows, 2)
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if n != 5 {
		t.Fatalf("n=%d want 5", n)
	}
	if want := []int{2, 2, 1}; !reflect.DeepEqual(snap.batches, want) {
		t.Fatalf("batches=%v want %v", snap.batches, want)
	}
	if snap.calls[0] != "truncate silver.t" {
		t.Fatalf("first call %q, want truncate", snap.calls[0])
	}
}

func TestReplace_EmptyStillTruncates(t *testing.T) {
	t.Parallel()

	snap := &recordingSnap{}
	if _, err := Replace(context.Background(), snap, schema.Table{Layer: "silver", Name: "t"}, nil, 0); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if want := []string{"truncate silver.t"}; !reflect.DeepEqual(snap.calls, want) {
		t.Fatalf("calls=%v want %v", snap.calls, want)
	}
}

func TestReplace_AppendError(t *testing.T) {
	t.Parallel()

	snap := &recordingSnap{failOn: 2}
	rows := [][]any{{1}, {2}, {3}}
	n, err := Replace(context.Background(), snap, schema.Table{Layer: "silver", Name: "t"}, rows, 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if n != 1 {
		t.Fatalf("n=%d want 1", n)
	}
}

func TestCopyInto(t *testing.T) {
	t.Parallel()

	snap := &recordingSnap{}
	fn := CopyInto(snap, schema.Table{Layer: "bronze", Name: "x"})
	if n, err := fn(context.Background(), []string{"a"}, [][]any{{1}, {2}}); err != nil || n != 2 {
		t.Fatalf("CopyInto fn = (%d, %v)", n, err)
	}
	if snap.calls[0] != "append bronze.x" {
		t.Fatalf("calls=%v", snap.calls)
	}
}
