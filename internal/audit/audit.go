// Package audit re-verifies the curated layer after a load.
//
// The checker reads the silver tables back through the storage layer and
// evaluates every rule independently of the transform engine, producing
// (entity, rule, row id) findings. Findings are diagnostics for an operator;
// nothing here changes data or fails a load.
package audit

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"dwh/internal/config"
	"dwh/internal/metrics"
	"dwh/internal/schema"
	"dwh/internal/storage"

	"golang.org/x/sync/errgroup"
)

// Rules.
const (
	RuleKeyNull          = "key_null"
	RuleKeyDuplicate     = "key_duplicate"
	RuleUntrimmed        = "untrimmed_text"
	RuleUnreadable       = "unreadable_row"
	RuleCategoricalDrift = "categorical_drift"
	RuleCostInvalid      = "cost_negative_or_null"
	RuleBirthdateRange   = "birthdate_out_of_range"
	RuleEndBeforeStart   = "end_before_start"
	RuleOrderAfterShip   = "order_after_ship"
	RuleOrderAfterDue    = "order_after_due"
	RuleDateRange        = "date_out_of_range"
	RuleSalesMismatch    = "sales_mismatch"
	RuleProductKeyFormat = "product_key_format"
	RuleCIDFormat        = "cid_format"
	RuleMaintenance      = "maintenance_invalid"
)

// Finding is one offending row.
type Finding struct {
	Entity string
	Rule   string
	RowID  string
	Detail string
}

func (f Finding) String() string {
	if f.Detail == "" {
		return fmt.Sprintf("%s %s row=%s", f.Entity, f.Rule, f.RowID)
	}
	return fmt.Sprintf("%s %s row=%s: %s", f.Entity, f.Rule, f.RowID, f.Detail)
}

// RuleCount is the exact number of findings of one rule.
type RuleCount struct {
	Entity string
	Rule   string
	Count  int
}

// Report is the outcome of one audit. Findings holds at most MaxFindings
// rows per entity and rule; Counts are exact.
type Report struct {
	Findings []Finding
	Counts   []RuleCount
	Rows     map[string]int
}

// Total returns the number of findings, including the ones not kept.
func (r Report) Total() int {
	n := 0
	for _, c := range r.Counts {
		n += c.Count
	}
	return n
}

// Count returns the exact number of findings of rule for entity.
func (r Report) Count(entity, rule string) int {
	for _, c := range r.Counts {
		if c.Entity == entity && c.Rule == rule {
			return c.Count
		}
	}
	return 0
}

// Checker audits the silver layer.
type Checker struct {
	Job          string
	SilverSchema string

	// MinBirthdate is the oldest plausible birthdate.
	MinBirthdate time.Time

	// MaxFindings caps kept findings per entity and rule. 0 keeps all.
	MaxFindings int

	// Now returns the reference time for future-date checks.
	Now func() time.Time
}

// NewChecker builds a Checker from the audit section of a pipeline.
func NewChecker(job, silverSchema string, cfg config.Audit) (Checker, error) {
	minDate := cfg.MinBirthdate
	if minDate == "" {
		minDate = config.DefaultMinBirthdate
	}
	d, err := time.Parse(schema.DateLayout, minDate)
	if err != nil {
		return Checker{}, fmt.Errorf("audit.min_birthdate: %w", err)
	}
	return Checker{
		Job:          job,
		SilverSchema: silverSchema,
		MinBirthdate: d,
		MaxFindings:  cfg.MaxFindings,
		Now:          time.Now,
	}, nil
}

// Run reads every silver table and evaluates all rules. An error means the
// layer could not be read; rule violations are only ever findings.
func (c Checker) Run(ctx context.Context, repo storage.Repository) (Report, error) {
	start := time.Now()
	tables := schema.SilverTables(c.SilverSchema)
	data := make([][][]any, len(tables))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tables {
		g.Go(func() error {
			rows, err := repo.ReadTable(gctx, t)
			if err != nil {
				return fmt.Errorf("read %s: %w", t.FQN(), err)
			}
			data[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.RecordStep(c.Job, "", "audit", err, time.Since(start))
		return Report{}, err
	}

	col := newCollector(c.MaxFindings)
	rows := make(map[string]int, len(tables))
	for i, t := range tables {
		rows[t.Name] = len(data[i])
		c.checkTable(col, t, data[i])
	}

	rep := col.report()
	rep.Rows = rows
	for _, rc := range rep.Counts {
		metrics.RecordFindings(c.Job, rc.Entity, rc.Rule, rc.Count)
	}
	metrics.RecordStep(c.Job, "", "audit", nil, time.Since(start))
	log.Printf("audit: tables=%d findings=%d elapsed=%s", len(tables), rep.Total(), time.Since(start).Truncate(time.Millisecond))
	return rep, nil
}

func (c Checker) today() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	y, m, d := now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type ruleKey struct{ entity, rule string }

type collector struct {
	limit    int
	findings []Finding
	counts   map[ruleKey]int
}

func newCollector(limit int) *collector {
	return &collector{limit: limit, counts: map[ruleKey]int{}}
}

func (c *collector) add(entity, rule, rowID, detail string) {
	k := ruleKey{entity, rule}
	c.counts[k]++
	if c.limit > 0 && c.counts[k] > c.limit {
		return
	}
	c.findings = append(c.findings, Finding{Entity: entity, Rule: rule, RowID: rowID, Detail: detail})
}

func (c *collector) report() Report {
	order := make(map[string]int, len(schema.Entities))
	for i, e := range schema.Entities {
		order[e] = i
	}
	counts := make([]RuleCount, 0, len(c.counts))
	for k, n := range c.counts {
		counts = append(counts, RuleCount{Entity: k.entity, Rule: k.rule, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Entity != counts[j].Entity {
			return order[counts[i].Entity] < order[counts[j].Entity]
		}
		return counts[i].Rule < counts[j].Rule
	})
	return Report{Findings: c.findings, Counts: counts}
}
