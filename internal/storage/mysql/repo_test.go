package mysql

import (
	"context"
	"strings"
	"testing"

	"dwh/internal/schema"
	"dwh/internal/storage"
	"dwh/internal/storage/sqldb"
)

// TestMyIdent verifies that myIdent correctly backtick-quotes identifiers and
// escapes backticks by doubling them.
func TestMyIdent(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"simple", "`simple`"},
		{"tick`name", "`tick``name`"},
		{"weird``x", "`weird````x`"},
	}
	for _, tc := range cases {
		if got := myIdent(tc.in); got != tc.want {
			t.Fatalf("myIdent(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
	if got := Dialect.QualifiedName(schema.Table{Layer: "bronze", Name: "erp_loc_a101"}); got != "`bronze`.`erp_loc_a101`" {
		t.Fatalf("QualifiedName=%s", got)
	}
}

func TestNormalizeDSN(t *testing.T) {
	got, err := NormalizeDSN("user:pw@tcp(localhost:3306)/dwh")
	if err != nil {
		t.Fatalf("NormalizeDSN: %v", err)
	}
	if !strings.Contains(got, "parseTime=true") {
		t.Fatalf("parseTime not forced: %s", got)
	}
	if _, err := NormalizeDSN("not a dsn"); err == nil {
		t.Fatal("expected error for malformed DSN")
	}
}

func TestAdapterRegistrationAndClose(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	closed := false
	newRepository = func(ctx context.Context, cfg Config) (*sqldb.Repository, func(), error) {
		return sqldb.New(nil, Dialect), func() { closed = true }, nil
	}
	repo, err := storage.New(context.Background(), storage.Config{Kind: "mysql", DSN: "x"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	repo.Close()
	if !closed {
		t.Fatal("Close did not invoke closeFn")
	}
}
