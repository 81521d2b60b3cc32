package schema

import "fmt"

// Raw records mirror the bronze tables column for column. Every field is
// nullable text; interpretation happens in the transform engine.

type RawCustomer struct {
	ID            *string `json:"cst_id"`
	Key           *string `json:"cst_key"`
	FirstName     *string `json:"cst_firstname"`
	LastName      *string `json:"cst_lastname"`
	MaritalStatus *string `json:"cst_marital_status"`
	Gender        *string `json:"cst_gndr"`
	CreateDate    *string `json:"cst_create_date"`
}

type RawProduct struct {
	ID        *string `json:"prd_id"`
	Key       *string `json:"prd_key"`
	Name      *string `json:"prd_nm"`
	Cost      *string `json:"prd_cost"`
	Line      *string `json:"prd_line"`
	StartDate *string `json:"prd_start_dt"`
	EndDate   *string `json:"prd_end_dt"`
}

type RawSales struct {
	OrderNum   *string `json:"sls_ord_num"`
	ProductKey *string `json:"sls_prd_key"`
	CustomerID *string `json:"sls_cust_id"`
	OrderDate  *string `json:"sls_order_dt"`
	ShipDate   *string `json:"sls_ship_dt"`
	DueDate    *string `json:"sls_due_dt"`
	Sales      *string `json:"sls_sales"`
	Quantity   *string `json:"sls_quantity"`
	Price      *string `json:"sls_price"`
}

type RawDemographic struct {
	CID       *string `json:"cid"`
	BirthDate *string `json:"bdate"`
	Gender    *string `json:"gen"`
}

type RawLocation struct {
	CID     *string `json:"cid"`
	Country *string `json:"cntry"`
}

type RawCategory struct {
	ID          *string `json:"id"`
	Category    *string `json:"cat"`
	Subcategory *string `json:"subcat"`
	Maintenance *string `json:"maintenance"`
}

// rawFields returns pointers to each field in bronze column order.
func (r *RawCustomer) rawFields() []**string {
	return []**string{&r.ID, &r.Key, &r.FirstName, &r.LastName, &r.MaritalStatus, &r.Gender, &r.CreateDate}
}

func (r *RawProduct) rawFields() []**string {
	return []**string{&r.ID, &r.Key, &r.Name, &r.Cost, &r.Line, &r.StartDate, &r.EndDate}
}

func (r *RawSales) rawFields() []**string {
	return []**string{
		&r.OrderNum, &r.ProductKey, &r.CustomerID, &r.OrderDate, &r.ShipDate,
		&r.DueDate, &r.Sales, &r.Quantity, &r.Price,
	}
}

func (r *RawDemographic) rawFields() []**string {
	return []**string{&r.CID, &r.BirthDate, &r.Gender}
}

func (r *RawLocation) rawFields() []**string { return []**string{&r.CID, &r.Country} }

func (r *RawCategory) rawFields() []**string {
	return []**string{&r.ID, &r.Category, &r.Subcategory, &r.Maintenance}
}

type rawRecord interface{ rawFields() []**string }

func scanRaw(rec rawRecord, vals []any) error {
	fields := rec.rawFields()
	if len(vals) != len(fields) {
		return fmt.Errorf("row has %d values, want %d", len(vals), len(fields))
	}
	for i, f := range fields {
		*f = Text(vals[i])
	}
	return nil
}

func rawValues(rec rawRecord) []any {
	fields := rec.rawFields()
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = strVal(*f)
	}
	return out
}

// ScanRawCustomers converts bronze rows (bronze column order) to records.
func ScanRawCustomers(rows [][]any) ([]RawCustomer, error) {
	out := make([]RawCustomer, len(rows))
	for i := range rows {
		if err := scanRaw(&out[i], rows[i]); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", EntityCustomer, i, err)
		}
	}
	return out, nil
}

func ScanRawProducts(rows [][]any) ([]RawProduct, error) {
	out := make([]RawProduct, len(rows))
	for i := range rows {
		if err := scanRaw(&out[i], rows[i]); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", EntityProduct, i, err)
		}
	}
	return out, nil
}

func ScanRawSales(rows [][]any) ([]RawSales, error) {
	out := make([]RawSales, len(rows))
	for i := range rows {
		if err := scanRaw(&out[i], rows[i]); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", EntitySales, i, err)
		}
	}
	return out, nil
}

func ScanRawDemographics(rows [][]any) ([]RawDemographic, error) {
	out := make([]RawDemographic, len(rows))
	for i := range rows {
		if err := scanRaw(&out[i], rows[i]); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", EntityDemographic, i, err)
		}
	}
	return out, nil
}

func ScanRawLocations(rows [][]any) ([]RawLocation, error) {
	out := make([]RawLocation, len(rows))
	for i := range rows {
		if err := scanRaw(&out[i], rows[i]); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", EntityLocation, i, err)
		}
	}
	return out, nil
}

func ScanRawCategories(rows [][]any) ([]RawCategory, error) {
	out := make([]RawCategory, len(rows))
	for i := range rows {
		if err := scanRaw(&out[i], rows[i]); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", EntityCategory, i, err)
		}
	}
	return out, nil
}

// Values returns the record in bronze column order.
func (r RawCustomer) Values() []any    { return rawValues(&r) }
func (r RawProduct) Values() []any     { return rawValues(&r) }
func (r RawSales) Values() []any       { return rawValues(&r) }
func (r RawDemographic) Values() []any { return rawValues(&r) }
func (r RawLocation) Values() []any    { return rawValues(&r) }
func (r RawCategory) Values() []any    { return rawValues(&r) }
