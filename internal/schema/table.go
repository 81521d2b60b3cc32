// Package schema describes the bronze (raw staging) and silver (curated)
// relations of the warehouse: their column shapes, the Go record types that
// flow through the transform engine, and the conversions between the two.
//
// Bronze tables are deliberately loosely typed (every column is text) so the
// staging loader never rejects an extract because of a malformed value. Silver
// tables are typed and carry a dwh_create_date load timestamp.
package schema

import "strings"

// Layer names double as the default database schema names.
const (
	LayerBronze = "bronze"
	LayerSilver = "silver"
)

// Kind is the logical type of a column. Backends map it to a SQL type.
type Kind string

const (
	KindText      Kind = "text"
	KindInt       Kind = "int"
	KindFloat     Kind = "float"
	KindDate      Kind = "date"
	KindTimestamp Kind = "timestamp"
)

// Column is a single column of a Table.
type Column struct {
	Name string
	Kind Kind
}

// Table is a relation in one layer. Name is unqualified; backends decide how
// Layer and Name combine into a physical identifier.
type Table struct {
	Layer   string
	Name    string
	Columns []Column
}

// FQN returns "layer.name".
func (t Table) FQN() string { return t.Layer + "." + t.Name }

// ColumnNames returns the ordered column names.
func (t Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// InLayer returns a copy of t bound to another layer (schema) name.
func (t Table) InLayer(layer string) Table {
	t.Layer = layer
	return t
}

// Index returns the position of column name, or -1.
func (t Table) Index(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Entity names. They are also the physical table names in both layers.
const (
	EntityCustomer    = "crm_cust_info"
	EntityProduct     = "crm_prd_info"
	EntitySales       = "crm_sales_details"
	EntityDemographic = "erp_cust_az12"
	EntityLocation    = "erp_loc_a101"
	EntityCategory    = "erp_px_cat_g1v2"
)

// Entities lists every entity in load order.
var Entities = []string{
	EntityCustomer,
	EntityProduct,
	EntitySales,
	EntityDemographic,
	EntityLocation,
	EntityCategory,
}

// LoadTimestampColumn is the audit column appended to every silver table.
const LoadTimestampColumn = "dwh_create_date"

func text(names ...string) []Column {
	out := make([]Column, len(names))
	for i, n := range names {
		out[i] = Column{Name: n, Kind: KindText}
	}
	return out
}

var bronzeTables = map[string]Table{
	EntityCustomer: {Layer: LayerBronze, Name: EntityCustomer, Columns: text(
		"cst_id", "cst_key", "cst_firstname", "cst_lastname",
		"cst_marital_status", "cst_gndr", "cst_create_date",
	)},
	EntityProduct: {Layer: LayerBronze, Name: EntityProduct, Columns: text(
		"prd_id", "prd_key", "prd_nm", "prd_cost", "prd_line",
		"prd_start_dt", "prd_end_dt",
	)},
	EntitySales: {Layer: LayerBronze, Name: EntitySales, Columns: text(
		"sls_ord_num", "sls_prd_key", "sls_cust_id", "sls_order_dt",
		"sls_ship_dt", "sls_due_dt", "sls_sales", "sls_quantity", "sls_price",
	)},
	EntityDemographic: {Layer: LayerBronze, Name: EntityDemographic, Columns: text(
		"cid", "bdate", "gen",
	)},
	EntityLocation: {Layer: LayerBronze, Name: EntityLocation, Columns: text(
		"cid", "cntry",
	)},
	EntityCategory: {Layer: LayerBronze, Name: EntityCategory, Columns: text(
		"id", "cat", "subcat", "maintenance",
	)},
}

var silverTables = map[string]Table{
	EntityCustomer: {Layer: LayerSilver, Name: EntityCustomer, Columns: []Column{
		{"cst_id", KindInt},
		{"cst_key", KindText},
		{"cst_firstname", KindText},
		{"cst_lastname", KindText},
		{"cst_marital_status", KindText},
		{"cst_gndr", KindText},
		{"cst_create_date", KindDate},
		{LoadTimestampColumn, KindTimestamp},
	}},
	EntityProduct: {Layer: LayerSilver, Name: EntityProduct, Columns: []Column{
		{"prd_id", KindInt},
		{"cat_id", KindText},
		{"prd_key", KindText},
		{"prd_nm", KindText},
		{"prd_cost", KindFloat},
		{"prd_line", KindText},
		{"prd_start_dt", KindDate},
		{"prd_end_dt", KindDate},
		{LoadTimestampColumn, KindTimestamp},
	}},
	EntitySales: {Layer: LayerSilver, Name: EntitySales, Columns: []Column{
		{"sls_ord_num", KindText},
		{"sls_prd_key", KindText},
		{"sls_cust_id", KindInt},
		{"sls_order_dt", KindDate},
		{"sls_ship_dt", KindDate},
		{"sls_due_dt", KindDate},
		{"sls_sales", KindFloat},
		{"sls_quantity", KindInt},
		{"sls_price", KindFloat},
		{LoadTimestampColumn, KindTimestamp},
	}},
	EntityDemographic: {Layer: LayerSilver, Name: EntityDemographic, Columns: []Column{
		{"cid", KindText},
		{"bdate", KindDate},
		{"gen", KindText},
		{LoadTimestampColumn, KindTimestamp},
	}},
	EntityLocation: {Layer: LayerSilver, Name: EntityLocation, Columns: []Column{
		{"cid", KindText},
		{"cntry", KindText},
		{LoadTimestampColumn, KindTimestamp},
	}},
	EntityCategory: {Layer: LayerSilver, Name: EntityCategory, Columns: []Column{
		{"id", KindText},
		{"cat", KindText},
		{"subcat", KindText},
		{"maintenance", KindText},
		{LoadTimestampColumn, KindTimestamp},
	}},
}

// Bronze returns the staging table for entity. ok is false for unknown names.
func Bronze(entity string) (Table, bool) {
	t, ok := bronzeTables[entity]
	return t, ok
}

// Silver returns the curated table for entity. ok is false for unknown names.
func Silver(entity string) (Table, bool) {
	t, ok := silverTables[entity]
	return t, ok
}

// BronzeTables returns all staging tables bound to the given schema name
// (LayerBronze when empty), in Entities order.
func BronzeTables(layer string) []Table { return tablesIn(Bronze, layer, LayerBronze) }

// SilverTables returns all curated tables bound to the given schema name
// (LayerSilver when empty), in Entities order.
func SilverTables(layer string) []Table { return tablesIn(Silver, layer, LayerSilver) }

func tablesIn(lookup func(string) (Table, bool), layer, def string) []Table {
	if layer == "" {
		layer = def
	}
	out := make([]Table, 0, len(Entities))
	for _, e := range Entities {
		t, _ := lookup(e)
		out = append(out, t.InLayer(layer))
	}
	return out
}
