package audit

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"

	"dwh/internal/schema"
	"dwh/internal/transformer/builtin"
)

// keySpec names an entity's business key columns. The first required
// columns must be non-null; the full tuple must be unique.
type keySpec struct {
	cols     []string
	required int
}

var keys = map[string]keySpec{
	schema.EntityCustomer:    {cols: []string{"cst_id"}, required: 1},
	schema.EntityProduct:     {cols: []string{"prd_key", "prd_start_dt"}, required: 1},
	schema.EntitySales:       {cols: []string{"sls_ord_num", "sls_prd_key", "sls_cust_id"}, required: 3},
	schema.EntityDemographic: {cols: []string{"cid"}, required: 1},
	schema.EntityLocation:    {cols: []string{"cid"}, required: 1},
	schema.EntityCategory:    {cols: []string{"id"}, required: 1},
}

var catIDFormat = regexp.MustCompile(`^[A-Za-z0-9]{2}_[A-Za-z0-9]{2}$`)

// checkTable runs the generic row rules and then the entity's typed rules on
// the rows that survived them.
func (c Checker) checkTable(col *collector, t schema.Table, rows [][]any) {
	entity := t.Name
	ks := keys[entity]
	idx := make([]int, len(ks.cols))
	for i, name := range ks.cols {
		idx[i] = t.Index(name)
	}

	seen := make(map[string]int, len(rows))
	typed := make([][]any, 0, len(rows))
	for _, row := range rows {
		if len(row) != len(t.Columns) {
			col.add(entity, RuleUnreadable, "?", fmt.Sprintf("%d values, want %d", len(row), len(t.Columns)))
			continue
		}
		id := keyString(row, idx)

		null := false
		for _, i := range idx[:ks.required] {
			if isNull(row[i]) {
				null = true
			}
		}
		if null {
			col.add(entity, RuleKeyNull, id, "")
		} else {
			seen[id]++
			if seen[id] == 2 {
				col.add(entity, RuleKeyDuplicate, id, "")
			}
		}

		for i, cdef := range t.Columns {
			if s, ok := row[i].(string); ok && cdef.Kind == schema.KindText && builtin.HasEdgeSpace(s) {
				col.add(entity, RuleUntrimmed, id, fmt.Sprintf("%s=%q", cdef.Name, s))
			}
		}
		typed = append(typed, row)
	}

	switch entity {
	case schema.EntityCustomer:
		scanEach(col, entity, typed, schema.ScanCustomers, c.checkCustomer)
	case schema.EntityProduct:
		scanEach(col, entity, typed, schema.ScanProducts, c.checkProduct)
	case schema.EntitySales:
		scanEach(col, entity, typed, schema.ScanSales, c.checkSales)
	case schema.EntityDemographic:
		scanEach(col, entity, typed, schema.ScanDemographics, c.checkDemographic)
	case schema.EntityLocation:
		scanEach(col, entity, typed, schema.ScanLocations, c.checkLocation)
	case schema.EntityCategory:
		scanEach(col, entity, typed, schema.ScanCategories, c.checkCategory)
	}
}

// scanEach converts rows one at a time so one unreadable row does not hide
// the others.
func scanEach[T any](col *collector, entity string, rows [][]any, scan func([][]any) ([]T, error), check func(*collector, T)) {
	for i, row := range rows {
		recs, err := scan([][]any{row})
		if err != nil {
			col.add(entity, RuleUnreadable, fmt.Sprintf("#%d", i), err.Error())
			continue
		}
		check(col, recs[0])
	}
}

func (c Checker) checkCustomer(col *collector, r schema.Customer) {
	e, id := schema.EntityCustomer, r.RowID()
	drift(col, e, id, "cst_marital_status", r.MaritalStatus, builtin.MaritalStatus)
	drift(col, e, id, "cst_gndr", r.Gender, builtin.Gender)
}

func (c Checker) checkProduct(col *collector, r schema.Product) {
	e, id := schema.EntityProduct, r.RowID()
	if r.Cost == nil || *r.Cost < 0 {
		col.add(e, RuleCostInvalid, id, fmt.Sprintf("prd_cost=%s", floatString(r.Cost)))
	}
	drift(col, e, id, "prd_line", r.Line, builtin.ProductLine)
	if r.StartDate != nil && r.EndDate != nil && r.StartDate.After(*r.EndDate) {
		col.add(e, RuleEndBeforeStart, id, fmt.Sprintf("start=%s end=%s", day(r.StartDate), day(r.EndDate)))
	}
	if !catIDFormat.MatchString(r.CategoryID) || r.Key == "" || strings.ContainsFunc(r.Key, unicode.IsSpace) {
		col.add(e, RuleProductKeyFormat, id, fmt.Sprintf("cat_id=%q prd_key=%q", r.CategoryID, r.Key))
	}
}

func (c Checker) checkSales(col *collector, r schema.Sales) {
	e, id := schema.EntitySales, r.RowID()
	for _, d := range []struct {
		name string
		at   *time.Time
	}{{"sls_order_dt", r.OrderDate}, {"sls_ship_dt", r.ShipDate}, {"sls_due_dt", r.DueDate}} {
		if d.at != nil && (d.at.Before(builtin.MinIntDate) || d.at.After(builtin.MaxIntDate)) {
			col.add(e, RuleDateRange, id, fmt.Sprintf("%s=%s", d.name, day(d.at)))
		}
	}
	if r.OrderDate != nil && r.ShipDate != nil && r.OrderDate.After(*r.ShipDate) {
		col.add(e, RuleOrderAfterShip, id, fmt.Sprintf("order=%s ship=%s", day(r.OrderDate), day(r.ShipDate)))
	}
	if r.OrderDate != nil && r.DueDate != nil && r.OrderDate.After(*r.DueDate) {
		col.add(e, RuleOrderAfterDue, id, fmt.Sprintf("order=%s due=%s", day(r.OrderDate), day(r.DueDate)))
	}
	if !salesConsistent(r) {
		col.add(e, RuleSalesMismatch, id, fmt.Sprintf("sales=%s quantity=%d price=%s",
			floatString(r.Sales), r.Quantity, floatString(r.Price)))
	}
}

// salesConsistent requires positive amounts with sales = quantity × price.
func salesConsistent(r schema.Sales) bool {
	if r.Sales == nil || r.Price == nil || *r.Sales <= 0 || *r.Price <= 0 || r.Quantity <= 0 {
		return false
	}
	return builtin.ApproxEqual(*r.Sales, float64(r.Quantity)*(*r.Price))
}

func (c Checker) checkDemographic(col *collector, r schema.Demographic) {
	e, id := schema.EntityDemographic, r.RowID()
	if strings.HasPrefix(r.CID, "NAS") {
		col.add(e, RuleCIDFormat, id, "NAS prefix")
	}
	if r.BirthDate != nil && (r.BirthDate.Before(c.MinBirthdate) || r.BirthDate.After(c.today())) {
		col.add(e, RuleBirthdateRange, id, "bdate="+day(r.BirthDate))
	}
	drift(col, e, id, "gen", r.Gender, builtin.Gender)
}

func (c Checker) checkLocation(col *collector, r schema.Location) {
	e, id := schema.EntityLocation, r.RowID()
	if strings.Contains(r.CID, "-") {
		col.add(e, RuleCIDFormat, id, "contains '-'")
	}
	// Country passes unknown names through, so drift means a value the
	// lookup would still rewrite, such as a raw code or a blank.
	if builtin.Country.MapString(r.Country) != r.Country {
		col.add(e, RuleCategoricalDrift, id, fmt.Sprintf("cntry=%q", r.Country))
	}
}

func (c Checker) checkCategory(col *collector, r schema.Category) {
	e, id := schema.EntityCategory, r.RowID()
	if r.Maintenance == nil {
		col.add(e, RuleMaintenance, id, "maintenance=<null>")
		return
	}
	// The fallback label is not a valid flag.
	if v := *r.Maintenance; v == builtin.NA || !builtin.Maintenance.Contains(v) {
		col.add(e, RuleMaintenance, id, "maintenance="+v)
	}
}

func drift(col *collector, entity, id, column, v string, l builtin.Lookup) {
	if !l.Contains(v) {
		col.add(entity, RuleCategoricalDrift, id, fmt.Sprintf("%s=%q", column, v))
	}
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func keyString(row []any, idx []int) string {
	parts := make([]string, len(idx))
	for i, ix := range idx {
		switch v := row[ix].(type) {
		case nil:
			parts[i] = "<null>"
		case time.Time:
			parts[i] = v.Format(schema.DateLayout)
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(parts, "/")
}

func day(t *time.Time) string {
	if t == nil {
		return "<null>"
	}
	return t.Format(schema.DateLayout)
}

func floatString(f *float64) string {
	if f == nil {
		return "<null>"
	}
	if *f == math.Trunc(*f) && math.Abs(*f) < 1e15 {
		return fmt.Sprintf("%.0f", *f)
	}
	return fmt.Sprint(*f)
}
