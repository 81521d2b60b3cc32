package builtin

import "math"

// RepairSales makes an order line's amounts consistent with
// sales = quantity × |price|. Quantity is authoritative and never changed.
//
// The branch is chosen from the original values before either amount is
// touched:
//
//   - price null or zero: price cannot rebuild sales, so a positive sales
//     value is kept and price is derived from it. Without one, both are null.
//   - otherwise sales is replaced by quantity × |price| unless it already
//     matches, and a non-positive price is derived from the repaired sales.
//
// A derived price is null when quantity is zero.
func RepairSales(sales, price *float64, quantity int64) (*float64, *float64) {
	validSales := sales != nil && *sales > 0

	if price == nil || *price == 0 {
		if !validSales {
			return nil, nil
		}
		s := *sales
		return &s, divide(s, quantity)
	}

	expected := float64(quantity) * math.Abs(*price)
	s := expected
	if validSales && ApproxEqual(*sales, expected) {
		s = *sales
	}

	if *price > 0 {
		p := *price
		return &s, &p
	}
	return &s, divide(s, quantity)
}

func divide(sales float64, quantity int64) *float64 {
	if quantity == 0 {
		return nil
	}
	p := sales / float64(quantity)
	return &p
}

// ApproxEqual compares two amounts with a relative tolerance wide enough to
// absorb float rounding from a multiply/divide round trip.
func ApproxEqual(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= 1e-9*scale
}
