package transformer

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"dwh/internal/schema"
	"dwh/internal/transformer/builtin"
)

// Reject reasons. They are stable strings: the dead-letter file and the
// rejected-rows metric are keyed by them.
const (
	ReasonNullKey      = "null business key"
	ReasonBadKey       = "unparseable business key"
	ReasonShortKey     = "product key shorter than 7 characters"
	ReasonBadQuantity  = "missing or unparseable quantity"
	ReasonBadCustomer  = "missing or unparseable customer id"
	ReasonMissingOrder = "missing order number or product key"
)

// RejectedRow is a raw record the engine could not curate.
type RejectedRow struct {
	Entity string
	Reason string
	Key    string
	Raw    any
}

// Engine maps raw records to curated records, one pure function per entity.
// Every output row is stamped with LoadedAt, and birthdates are compared to
// the calendar day of LoadedAt.
//
// Malformed records never fail a run: they are handed to OnReject (when set)
// and skipped. Outputs are sorted deterministically so two runs over the same
// staging data produce identical silver tables.
type Engine struct {
	LoadedAt time.Time
	OnReject func(RejectedRow)
}

// NewEngine returns an Engine stamping rows with loadedAt (truncated to
// microseconds, the coarsest timestamp precision among the backends).
func NewEngine(loadedAt time.Time, onReject func(RejectedRow)) Engine {
	return Engine{LoadedAt: loadedAt.UTC().Truncate(time.Microsecond), OnReject: onReject}
}

func (e Engine) reject(entity, reason, key string, raw any) {
	if e.OnReject != nil {
		e.OnReject(RejectedRow{Entity: entity, Reason: reason, Key: key, Raw: raw})
	}
}

func (e Engine) today() time.Time {
	y, m, d := e.LoadedAt.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func keyOf(p *string) string {
	if p == nil {
		return ""
	}
	return builtin.Clean(*p)
}

// Customers keeps the latest record per cst_id. Versions are ordered on the
// full creation timestamp even though only its day is kept. Equal timestamps
// fall back to the more complete record, then to the smallest canonical tuple.
func (e Engine) Customers(in []schema.RawCustomer) []schema.Customer {
	type parsed struct {
		rec schema.Customer
		at  *time.Time
	}

	rows := make([]parsed, 0, len(in))
	for _, r := range in {
		key := builtin.CleanPtr(r.ID)
		if key == nil {
			e.reject(schema.EntityCustomer, ReasonNullKey, "", r)
			continue
		}
		id, ok := builtin.ParseInt(key)
		if !ok {
			e.reject(schema.EntityCustomer, ReasonBadKey, *key, r)
			continue
		}
		rows = append(rows, parsed{at: builtin.ParseTimestamp(r.CreateDate), rec: schema.Customer{
			ID:            id,
			Key:           builtin.CleanPtr(r.Key),
			FirstName:     builtin.CleanPtr(r.FirstName),
			LastName:      builtin.CleanPtr(r.LastName),
			MaritalStatus: builtin.MaritalStatus.Map(r.MaritalStatus),
			Gender:        builtin.Gender.Map(r.Gender),
			CreateDate:    builtin.ParseDate(r.CreateDate),
			LoadedAt:      e.LoadedAt,
		}})
	}

	dd := builtin.DeDup[parsed]{
		Key: func(p parsed) string { return strconv.FormatInt(p.rec.ID, 10) },
		At:  func(p parsed) *time.Time { return p.at },
		Prefer: func(a, b parsed) bool {
			ca, cb := completeness(a.rec), completeness(b.rec)
			if ca != cb {
				return ca > cb
			}
			return customerTuple(a.rec) < customerTuple(b.rec)
		},
	}
	winners := dd.Apply(rows)

	out := make([]schema.Customer, len(winners))
	for i, w := range winners {
		out[i] = w.rec
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// completeness counts populated descriptive attributes.
func completeness(c schema.Customer) int {
	n := 0
	for _, p := range []*string{c.Key, c.FirstName, c.LastName} {
		if p != nil {
			n++
		}
	}
	for _, s := range []string{c.MaritalStatus, c.Gender} {
		if s != builtin.NA {
			n++
		}
	}
	return n
}

func customerTuple(c schema.Customer) string {
	return schema.Canonical([]any{
		deref(c.Key), deref(c.FirstName), deref(c.LastName), c.MaritalStatus, c.Gender,
	})
}

// Products splits the raw key into category id and product key, coerces cost,
// maps the product line, and derives each version's end date from the next
// version of the same raw key.
func (e Engine) Products(in []schema.RawProduct) []schema.Product {
	type version struct {
		rawKey string
		rec    schema.Product
	}

	rows := make([]version, 0, len(in))
	for _, r := range in {
		raw := keyOf(r.Key)
		if raw == "" {
			e.reject(schema.EntityProduct, ReasonNullKey, "", r)
			continue
		}
		runes := []rune(raw)
		if len(runes) < 7 {
			e.reject(schema.EntityProduct, ReasonShortKey, raw, r)
			continue
		}
		var id *int64
		if n, ok := builtin.ParseInt(r.ID); ok {
			id = &n
		}
		cost := builtin.Cost(r.Cost)
		rows = append(rows, version{rawKey: raw, rec: schema.Product{
			ID:         id,
			CategoryID: strings.ReplaceAll(string(runes[:5]), "-", "_"),
			Key:        string(runes[6:]),
			Name:       builtin.CleanPtr(r.Name),
			Cost:       &cost,
			Line:       builtin.ProductLine.Map(r.Line),
			StartDate:  builtin.ParseDate(r.StartDate),
			LoadedAt:   e.LoadedAt,
		}})
	}

	w := builtin.EndDates[version]{
		Key:   func(v version) string { return v.rawKey },
		Start: func(v version) *time.Time { return v.rec.StartDate },
		Tie: func(a, b version) bool {
			ia, ib := a.rec.ID, b.rec.ID
			switch {
			case ia == nil && ib != nil:
				return true
			case ia != nil && ib == nil:
				return false
			case ia != nil && *ia != *ib:
				return *ia < *ib
			}
			return schema.Canonical(a.rec.Values()) < schema.Canonical(b.rec.Values())
		},
		SetEnd: func(v *version, end *time.Time) { v.rec.EndDate = end },
	}
	ordered := w.Apply(rows)

	out := make([]schema.Product, len(ordered))
	for i, v := range ordered {
		out[i] = v.rec
	}
	return out
}

// Sales converts integer-encoded dates and repairs sales and price so that
// sales = quantity × |price|. Quantity is authoritative: a row without a
// usable quantity is rejected rather than guessed.
func (e Engine) Sales(in []schema.RawSales) []schema.Sales {
	out := make([]schema.Sales, 0, len(in))
	for _, r := range in {
		ord, prd := keyOf(r.OrderNum), keyOf(r.ProductKey)
		key := ord + "/" + prd
		if ord == "" || prd == "" {
			e.reject(schema.EntitySales, ReasonMissingOrder, key, r)
			continue
		}
		cust, ok := builtin.ParseInt(r.CustomerID)
		if !ok {
			e.reject(schema.EntitySales, ReasonBadCustomer, key, r)
			continue
		}
		qty, ok := builtin.ParseInt(r.Quantity)
		if !ok {
			e.reject(schema.EntitySales, ReasonBadQuantity, key, r)
			continue
		}

		var sales, price *float64
		if f, ok := builtin.ParseFloat(r.Sales); ok {
			sales = &f
		}
		if f, ok := builtin.ParseFloat(r.Price); ok {
			price = &f
		}
		sales, price = builtin.RepairSales(sales, price, qty)

		out = append(out, schema.Sales{
			OrderNum:   ord,
			ProductKey: prd,
			CustomerID: cust,
			OrderDate:  builtin.ParseIntDate(r.OrderDate),
			ShipDate:   builtin.ParseIntDate(r.ShipDate),
			DueDate:    builtin.ParseIntDate(r.DueDate),
			Sales:      sales,
			Quantity:   qty,
			Price:      price,
			LoadedAt:   e.LoadedAt,
		})
	}
	sortCanonical(out)
	return out
}

// Demographics strips the NAS prefix from cid, nulls future birthdates, and
// normalizes gender.
func (e Engine) Demographics(in []schema.RawDemographic) []schema.Demographic {
	today := e.today()
	out := make([]schema.Demographic, 0, len(in))
	for _, r := range in {
		cid := builtin.StripPrefix(keyOf(r.CID), "NAS")
		if cid == "" {
			e.reject(schema.EntityDemographic, ReasonNullKey, "", r)
			continue
		}
		bdate := builtin.ParseDate(r.BirthDate)
		if bdate != nil && bdate.After(today) {
			bdate = nil
		}
		out = append(out, schema.Demographic{
			CID:       cid,
			BirthDate: bdate,
			Gender:    builtin.Gender.Map(r.Gender),
			LoadedAt:  e.LoadedAt,
		})
	}
	sortCanonical(out)
	return out
}

// Locations removes dashes from cid and expands country codes.
func (e Engine) Locations(in []schema.RawLocation) []schema.Location {
	out := make([]schema.Location, 0, len(in))
	for _, r := range in {
		cid := builtin.StripRunes(keyOf(r.CID), '-')
		if cid == "" {
			e.reject(schema.EntityLocation, ReasonNullKey, "", r)
			continue
		}
		out = append(out, schema.Location{
			CID:      cid,
			Country:  builtin.Country.Map(r.Country),
			LoadedAt: e.LoadedAt,
		})
	}
	sortCanonical(out)
	return out
}

// Categories passes category rows through, trimmed.
func (e Engine) Categories(in []schema.RawCategory) []schema.Category {
	out := make([]schema.Category, 0, len(in))
	for _, r := range in {
		id := keyOf(r.ID)
		if id == "" {
			e.reject(schema.EntityCategory, ReasonNullKey, "", r)
			continue
		}
		out = append(out, schema.Category{
			ID:          id,
			Category:    builtin.CleanPtr(r.Category),
			Subcategory: builtin.CleanPtr(r.Subcategory),
			Maintenance: builtin.CleanPtr(r.Maintenance),
			LoadedAt:    e.LoadedAt,
		})
	}
	sortCanonical(out)
	return out
}

type valuer interface{ Values() []any }

// sortCanonical orders records by their full canonical rendering.
func sortCanonical[T valuer](recs []T) {
	keys := make([]string, len(recs))
	for i, r := range recs {
		keys[i] = schema.Canonical(r.Values())
	}
	sort.Sort(byKey[T]{recs: recs, keys: keys})
}

type byKey[T any] struct {
	recs []T
	keys []string
}

func (b byKey[T]) Len() int           { return len(b.recs) }
func (b byKey[T]) Less(i, j int) bool { return b.keys[i] < b.keys[j] }
func (b byKey[T]) Swap(i, j int) {
	b.recs[i], b.recs[j] = b.recs[j], b.recs[i]
	b.keys[i], b.keys[j] = b.keys[j], b.keys[i]
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
