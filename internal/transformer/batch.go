package transformer

import (
	"fmt"

	"dwh/internal/schema"
)

// Bronze holds one fully materialized read of every staging table.
type Bronze struct {
	Customers    []schema.RawCustomer
	Products     []schema.RawProduct
	Sales        []schema.RawSales
	Demographics []schema.RawDemographic
	Locations    []schema.RawLocation
	Categories   []schema.RawCategory
}

// SetRows decodes rows read from the bronze table of entity.
func (b *Bronze) SetRows(entity string, rows [][]any) error {
	var err error
	switch entity {
	case schema.EntityCustomer:
		b.Customers, err = schema.ScanRawCustomers(rows)
	case schema.EntityProduct:
		b.Products, err = schema.ScanRawProducts(rows)
	case schema.EntitySales:
		b.Sales, err = schema.ScanRawSales(rows)
	case schema.EntityDemographic:
		b.Demographics, err = schema.ScanRawDemographics(rows)
	case schema.EntityLocation:
		b.Locations, err = schema.ScanRawLocations(rows)
	case schema.EntityCategory:
		b.Categories, err = schema.ScanRawCategories(rows)
	default:
		return fmt.Errorf("unknown entity %q", entity)
	}
	return err
}

// Len returns the number of raw rows read for entity.
func (b Bronze) Len(entity string) int {
	switch entity {
	case schema.EntityCustomer:
		return len(b.Customers)
	case schema.EntityProduct:
		return len(b.Products)
	case schema.EntitySales:
		return len(b.Sales)
	case schema.EntityDemographic:
		return len(b.Demographics)
	case schema.EntityLocation:
		return len(b.Locations)
	case schema.EntityCategory:
		return len(b.Categories)
	}
	return 0
}

// Silver holds the curated output of one run.
type Silver struct {
	Customers    []schema.Customer
	Products     []schema.Product
	Sales        []schema.Sales
	Demographics []schema.Demographic
	Locations    []schema.Location
	Categories   []schema.Category
}

// Transform runs a single entity's mapping from b into s.
func (e Engine) Transform(entity string, b Bronze, s *Silver) error {
	switch entity {
	case schema.EntityCustomer:
		s.Customers = e.Customers(b.Customers)
	case schema.EntityProduct:
		s.Products = e.Products(b.Products)
	case schema.EntitySales:
		s.Sales = e.Sales(b.Sales)
	case schema.EntityDemographic:
		s.Demographics = e.Demographics(b.Demographics)
	case schema.EntityLocation:
		s.Locations = e.Locations(b.Locations)
	case schema.EntityCategory:
		s.Categories = e.Categories(b.Categories)
	default:
		return fmt.Errorf("unknown entity %q", entity)
	}
	return nil
}

// Rows returns the curated rows of entity in silver column order.
func (s Silver) Rows(entity string) [][]any {
	switch entity {
	case schema.EntityCustomer:
		return valueRows(s.Customers)
	case schema.EntityProduct:
		return valueRows(s.Products)
	case schema.EntitySales:
		return valueRows(s.Sales)
	case schema.EntityDemographic:
		return valueRows(s.Demographics)
	case schema.EntityLocation:
		return valueRows(s.Locations)
	case schema.EntityCategory:
		return valueRows(s.Categories)
	}
	return nil
}

func valueRows[T valuer](recs []T) [][]any {
	out := make([][]any, len(recs))
	for i, r := range recs {
		out[i] = r.Values()
	}
	return out
}
