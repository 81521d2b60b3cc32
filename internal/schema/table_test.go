package schema

import "testing"

func TestLayerTables(t *testing.T) {
	tests := []struct {
		name   string
		tables []Table
		layer  string
		lookup func(string) (Table, bool)
	}{
		{"bronze default", BronzeTables(""), LayerBronze, Bronze},
		{"silver default", SilverTables(""), LayerSilver, Silver},
		{"silver renamed", SilverTables("curated"), "curated", Silver},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.tables) != len(Entities) {
				t.Fatalf("tables=%d want %d", len(tt.tables), len(Entities))
			}
			for i, tbl := range tt.tables {
				if tbl.Name != Entities[i] || tbl.Layer != tt.layer {
					t.Fatalf("table %d = %s, want %s.%s", i, tbl.FQN(), tt.layer, Entities[i])
				}
				want, ok := tt.lookup(tbl.Name)
				if !ok || len(want.Columns) != len(tbl.Columns) {
					t.Fatalf("%s: columns differ from lookup", tbl.FQN())
				}
			}
		})
	}
}

func TestLookupUnknownEntity(t *testing.T) {
	if _, ok := Silver("gold_fact"); ok {
		t.Fatal("Silver accepted an unknown entity")
	}
	if _, ok := Bronze("gold_fact"); ok {
		t.Fatal("Bronze accepted an unknown entity")
	}
}
