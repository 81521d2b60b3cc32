package mssql

import (
	"context"
	"strings"
	"testing"

	"dwh/internal/schema"
	"dwh/internal/storage"
	"dwh/internal/storage/sqldb"
)

func TestAdapterRegistrationAndClose(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var gotDSN string
	closed := false
	newRepository = func(ctx context.Context, cfg Config) (*sqldb.Repository, func(), error) {
		gotDSN = cfg.DSN
		return sqldb.New(nil, Dialect), func() { closed = true }, nil
	}

	dsn := "sqlserver://sa:pw@localhost:1433?database=dwh"
	repo, err := storage.New(context.Background(), storage.Config{Kind: "mssql", DSN: dsn})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if gotDSN != dsn {
		t.Fatalf("DSN=%q want %q", gotDSN, dsn)
	}
	repo.Close()
	if !closed {
		t.Fatal("Close did not invoke closeFn")
	}
}

func TestNewRepository_InvalidDSN(t *testing.T) {
	if _, _, err := NewRepository(context.Background(), Config{DSN: "sqlserver://%zz"}); err == nil {
		t.Fatal("expected DSN error")
	}
}

func TestIdentifiers(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "[plain]"},
		{"we]ird", "[we]]ird]"},
	}
	for _, tt := range tests {
		if got := msIdent(tt.in); got != tt.want {
			t.Errorf("msIdent(%q)=%s want %s", tt.in, got, tt.want)
		}
	}
	tbl := schema.Table{Layer: "silver", Name: "crm_cust_info"}
	if got := Dialect.QualifiedName(tbl); got != "[silver].[crm_cust_info]" {
		t.Fatalf("QualifiedName=%s", got)
	}
}

func TestDialectDDLWrappers(t *testing.T) {
	schemaStmt := Dialect.CreateSchema("silver")
	if !strings.HasPrefix(schemaStmt, "IF SCHEMA_ID(N'silver') IS NULL") || !strings.Contains(schemaStmt, "CREATE SCHEMA [silver]") {
		t.Fatalf("CreateSchema=%s", schemaStmt)
	}
	tableStmt := Dialect.CreateTable([]string{"silver", "x"}, "CREATE TABLE [silver].[x] (a INT)")
	if !strings.HasPrefix(tableStmt, "IF OBJECT_ID(N'[silver].[x]', N'U') IS NULL CREATE TABLE") {
		t.Fatalf("CreateTable=%s", tableStmt)
	}
	if got := Dialect.Placeholder(3); got != "@p3" {
		t.Fatalf("Placeholder=%s", got)
	}
}

func TestMapType(t *testing.T) {
	cases := map[schema.Kind]string{
		schema.KindInt:       "BIGINT",
		schema.KindFloat:     "FLOAT",
		schema.KindDate:      "DATE",
		schema.KindTimestamp: "DATETIME2",
		schema.KindText:      "NVARCHAR(MAX)",
	}
	for k, want := range cases {
		if got := MapType(k); got != want {
			t.Errorf("MapType(%s)=%s want %s", k, got, want)
		}
	}
}
