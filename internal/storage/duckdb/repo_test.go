//go:build cgo

package duckdb

import (
	"context"
	"testing"
	"time"

	"dwh/internal/schema"
	"dwh/internal/storage"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.New(ctx, storage.Config{Kind: "duckdb", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	defer repo.Close()

	tbl, _ := schema.Silver(schema.EntityDemographic)
	if err := repo.EnsureTables(ctx, []schema.Table{tbl}); err != nil {
		t.Fatalf("EnsureTables: %v", err)
	}

	bdate := time.Date(1971, 10, 6, 0, 0, 0, 0, time.UTC)
	loaded := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	in := []schema.Demographic{
		{CID: "AW00011000", BirthDate: &bdate, Gender: "Male", LoadedAt: loaded},
		{CID: "AW00011001", Gender: "n/a", LoadedAt: loaded},
	}
	rows := [][]any{in[0].Values(), in[1].Values()}

	snap, err := repo.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := storage.Replace(ctx, snap, tbl, rows, 10); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if err := snap.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	back, err := repo.ReadTable(ctx, tbl)
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	got, err := schema.ScanDemographics(back)
	if err != nil {
		t.Fatalf("ScanDemographics: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rows=%d want 2", len(got))
	}
	for _, d := range got {
		if d.CID == "AW00011000" && (d.BirthDate == nil || !d.BirthDate.Equal(bdate)) {
			t.Fatalf("birthdate=%v want %v", d.BirthDate, bdate)
		}
		if d.CID == "AW00011001" && d.BirthDate != nil {
			t.Fatalf("null birthdate not preserved: %v", d.BirthDate)
		}
	}
}

func TestMapType(t *testing.T) {
	if got := MapType(schema.KindText); got != "VARCHAR" {
		t.Fatalf("MapType(text)=%s", got)
	}
	if got := MapType(schema.KindTimestamp); got != "TIMESTAMP" {
		t.Fatalf("MapType(timestamp)=%s", got)
	}
}
