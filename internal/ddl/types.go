package ddl

import "dwh/internal/schema"

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, TIMESTAMPTZ)
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Default: raw default expression (e.g., CURRENT_TIMESTAMP)
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the physical table name and an ordered list of columns.
// FQN is rendered verbatim, so callers pass it already quoted.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// FromTable converts a warehouse table into a TableDef. Every column is
// nullable: bronze keeps whatever the extract held and silver uses NULL as
// a legitimate curated value.
func FromTable(fqn string, t schema.Table, mapType func(schema.Kind) string) TableDef {
	cols := make([]ColumnDef, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = ColumnDef{Name: c.Name, SQLType: mapType(c.Kind), Nullable: true}
	}
	return TableDef{FQN: fqn, Columns: cols}
}
