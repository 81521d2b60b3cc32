package schema

import (
	"fmt"
	"strconv"
	"time"
)

// Customer is a curated CRM customer (silver.crm_cust_info).
type Customer struct {
	ID            int64
	Key           *string
	FirstName     *string
	LastName      *string
	MaritalStatus string // Single | Married | n/a
	Gender        string // Female | Male | n/a
	CreateDate    *time.Time
	LoadedAt      time.Time
}

// Product is a curated CRM product version (silver.crm_prd_info).
type Product struct {
	ID         *int64
	CategoryID string
	Key        string
	Name       *string
	Cost       *float64
	Line       string // Mountain | Road | Other Sales | Touring | n/a
	StartDate  *time.Time
	EndDate    *time.Time
	LoadedAt   time.Time
}

// Sales is a curated CRM order line (silver.crm_sales_details).
type Sales struct {
	OrderNum   string
	ProductKey string
	CustomerID int64
	OrderDate  *time.Time
	ShipDate   *time.Time
	DueDate    *time.Time
	Sales      *float64
	Quantity   int64
	Price      *float64
	LoadedAt   time.Time
}

// Demographic is a curated ERP customer attribute row (silver.erp_cust_az12).
type Demographic struct {
	CID       string
	BirthDate *time.Time
	Gender    string
	LoadedAt  time.Time
}

// Location is a curated ERP customer location (silver.erp_loc_a101).
type Location struct {
	CID      string
	Country  string
	LoadedAt time.Time
}

// Category is a curated ERP product category (silver.erp_px_cat_g1v2).
type Category struct {
	ID          string
	Category    *string
	Subcategory *string
	Maintenance *string
	LoadedAt    time.Time
}

// Values returns the record in silver column order.
func (c Customer) Values() []any {
	return []any{
		c.ID, strVal(c.Key), strVal(c.FirstName), strVal(c.LastName),
		c.MaritalStatus, c.Gender, timeVal(c.CreateDate), c.LoadedAt,
	}
}

func (p Product) Values() []any {
	return []any{
		intVal(p.ID), p.CategoryID, p.Key, strVal(p.Name), floatVal(p.Cost), p.Line,
		timeVal(p.StartDate), timeVal(p.EndDate), p.LoadedAt,
	}
}

func (s Sales) Values() []any {
	return []any{
		s.OrderNum, s.ProductKey, s.CustomerID, timeVal(s.OrderDate),
		timeVal(s.ShipDate), timeVal(s.DueDate), floatVal(s.Sales), s.Quantity,
		floatVal(s.Price), s.LoadedAt,
	}
}

func (d Demographic) Values() []any {
	return []any{d.CID, timeVal(d.BirthDate), d.Gender, d.LoadedAt}
}

func (l Location) Values() []any { return []any{l.CID, l.Country, l.LoadedAt} }

func (c Category) Values() []any {
	return []any{c.ID, strVal(c.Category), strVal(c.Subcategory), strVal(c.Maintenance), c.LoadedAt}
}

// Row identifiers reported by the audit.

func (c Customer) RowID() string    { return strconv.FormatInt(c.ID, 10) }
func (d Demographic) RowID() string { return d.CID }
func (l Location) RowID() string    { return l.CID }
func (c Category) RowID() string    { return c.ID }

func (p Product) RowID() string {
	if p.ID == nil {
		return "prd_key=" + p.Key
	}
	return strconv.FormatInt(*p.ID, 10)
}

func (s Sales) RowID() string {
	return fmt.Sprintf("%s/%s/%d", s.OrderNum, s.ProductKey, s.CustomerID)
}

// rowReader walks one silver row, remembering the first conversion error.
type rowReader struct {
	vals []any
	cols []Column
	i    int
	err  error
}

func (r *rowReader) next() (any, string) {
	v, name := r.vals[r.i], r.cols[r.i].Name
	r.i++
	return v, name
}

func (r *rowReader) fail(col string, err error) {
	if r.err == nil && err != nil {
		r.err = fmt.Errorf("column %s: %w", col, err)
	}
}

func (r *rowReader) text() *string {
	v, _ := r.next()
	return Text(v)
}

func (r *rowReader) str() string { return deref(r.text()) }

func (r *rowReader) intp() *int64 {
	v, col := r.next()
	n, err := Int(v)
	r.fail(col, err)
	return n
}

func (r *rowReader) int() int64 {
	if n := r.intp(); n != nil {
		return *n
	}
	return 0
}

func (r *rowReader) floatp() *float64 {
	v, col := r.next()
	f, err := Float(v)
	r.fail(col, err)
	return f
}

func (r *rowReader) date() *time.Time {
	v, col := r.next()
	d, err := Date(v)
	r.fail(col, err)
	return d
}

func (r *rowReader) ts() time.Time {
	v, col := r.next()
	t, err := Timestamp(v)
	r.fail(col, err)
	if t == nil {
		return time.Time{}
	}
	return *t
}

func scanSilver[T any](entity string, rows [][]any, fn func(r *rowReader) T) ([]T, error) {
	tbl := silverTables[entity]
	out := make([]T, 0, len(rows))
	for i, vals := range rows {
		if len(vals) != len(tbl.Columns) {
			return nil, fmt.Errorf("%s row %d: has %d values, want %d", entity, i, len(vals), len(tbl.Columns))
		}
		r := &rowReader{vals: vals, cols: tbl.Columns}
		rec := fn(r)
		if r.err != nil {
			return nil, fmt.Errorf("%s row %d: %w", entity, i, r.err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ScanCustomers converts silver rows (silver column order) back to records.
func ScanCustomers(rows [][]any) ([]Customer, error) {
	return scanSilver(EntityCustomer, rows, func(r *rowReader) Customer {
		return Customer{
			ID: r.int(), Key: r.text(), FirstName: r.text(), LastName: r.text(),
			MaritalStatus: r.str(), Gender: r.str(), CreateDate: r.date(), LoadedAt: r.ts(),
		}
	})
}

func ScanProducts(rows [][]any) ([]Product, error) {
	return scanSilver(EntityProduct, rows, func(r *rowReader) Product {
		return Product{
			ID: r.intp(), CategoryID: r.str(), Key: r.str(), Name: r.text(), Cost: r.floatp(),
			Line: r.str(), StartDate: r.date(), EndDate: r.date(), LoadedAt: r.ts(),
		}
	})
}

func ScanSales(rows [][]any) ([]Sales, error) {
	return scanSilver(EntitySales, rows, func(r *rowReader) Sales {
		return Sales{
			OrderNum: r.str(), ProductKey: r.str(), CustomerID: r.int(),
			OrderDate: r.date(), ShipDate: r.date(), DueDate: r.date(),
			Sales: r.floatp(), Quantity: r.int(), Price: r.floatp(), LoadedAt: r.ts(),
		}
	})
}

func ScanDemographics(rows [][]any) ([]Demographic, error) {
	return scanSilver(EntityDemographic, rows, func(r *rowReader) Demographic {
		return Demographic{CID: r.str(), BirthDate: r.date(), Gender: r.str(), LoadedAt: r.ts()}
	})
}

func ScanLocations(rows [][]any) ([]Location, error) {
	return scanSilver(EntityLocation, rows, func(r *rowReader) Location {
		return Location{CID: r.str(), Country: r.str(), LoadedAt: r.ts()}
	})
}

func ScanCategories(rows [][]any) ([]Category, error) {
	return scanSilver(EntityCategory, rows, func(r *rowReader) Category {
		return Category{
			ID: r.str(), Category: r.text(), Subcategory: r.text(), Maintenance: r.text(), LoadedAt: r.ts(),
		}
	})
}
