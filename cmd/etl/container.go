// Package main wires the warehouse loader end-to-end: staging of the raw
// extracts, curation of the bronze layer into the silver layer, and the
// post-load audit. This file keeps the CLI layer thin: it depends only on
// storage-agnostic interfaces and never imports database drivers or
// backend-specific packages directly.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"dwh/internal/audit"
	"dwh/internal/config"
	"dwh/internal/deadletter"
	"dwh/internal/pipeline"
	"dwh/internal/staging"
	"dwh/internal/storage"
	"dwh/internal/transformer"

	"github.com/google/uuid"
)

const (
	thisMany = 3
)

type Repository = storage.Repository

// Function variables used to introduce test seams.
// In production these point to real implementations; tests can override them.
var (
	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (Repository, error) {
		return storage.New(ctx, cfg)
	}

	newRunIDFn = uuid.NewString

	loadStagingFn = staging.LoadStaging
	loadCuratedFn = pipeline.LoadCurated
)

// runOptions selects the phases of one invocation.
type runOptions struct {
	stage   bool
	curate  bool
	audit   bool
	verbose bool
}

// counters holds the end-of-run statistics.
type counters struct {
	staged      int64 // rows appended to bronze tables
	parseErrors int64 // extract lines the CSV reader could not parse
	read        int64 // bronze rows read by curation
	rejected    int64 // rows the engine rejected
	written     int64 // rows written to silver tables
	findings    int   // audit findings, including the ones not kept
}

// run executes the selected phases against the configured backend.
//
// Staging and curation each commit one snapshot; a failure in either is
// returned (as *pipeline.PhaseError) and leaves the previously committed
// layer untouched. The audit never fails a run: a read failure is logged.
func run(ctx context.Context, p config.Pipeline, ro runOptions) error {
	repo, err := newRepositoryFn(ctx, storage.Config{Kind: p.Storage.Kind, DSN: p.Storage.DB.DSN})
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}
	defer repo.Close()

	runID := newRunIDFn()
	log.Printf("run: id=%s job=%s storage=%s stage=%t curate=%t audit=%t",
		runID, p.Job, p.Storage.Kind, ro.stage, ro.curate, ro.audit)

	var (
		c         counters
		parseAgg  = newErrAgg(thisMany)
		rejectAgg = newErrAgg(thisMany)
	)

	if ro.stage {
		opt := staging.FromPipeline(p)
		opt.OnParseError = func(table string, line int, err error) {
			parseAgg.add(fmt.Sprintf("%s line %d: %v", table, line, err))
		}
		res, err := loadStagingFn(ctx, repo, opt)
		if err != nil {
			logErrSummaries(parseAgg, rejectAgg)
			return err
		}
		c.staged, c.parseErrors = res.Rows, res.ParseErrors
		if ro.verbose {
			for _, t := range res.Tables {
				log.Printf("stage: table=%s rows=%d parse_errors=%d elapsed=%s",
					t.Table, t.Rows, t.ParseErrors, t.Elapsed.Truncate(time.Millisecond))
			}
		}
	}

	if ro.curate {
		dl, err := openDeadLetter(p.DeadLetter.Path, runID)
		if err != nil {
			return err
		}

		opt := pipeline.FromPipeline(p)
		opt.RunID = runID
		opt.OnReject = func(r transformer.RejectedRow) {
			rejectAgg.add(fmt.Sprintf("%s: %s", r.Entity, r.Reason))
			if dl != nil {
				dl.Add(r)
			}
		}
		res, err := loadCuratedFn(ctx, repo, opt)
		if cerr := closeDeadLetter(dl, p.DeadLetter.Path); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			logErrSummaries(parseAgg, rejectAgg)
			return err
		}
		for _, e := range res.Entities {
			c.read += e.Read
			c.rejected += e.Rejected
			c.written += e.Written
		}
	}

	if ro.audit {
		c.findings = runAudit(ctx, repo, p)
	}

	logErrSummaries(parseAgg, rejectAgg)
	logGlobalSummary(c)
	return nil
}

func openDeadLetter(path, runID string) (*deadletter.Writer, error) {
	if path == "" {
		return nil, nil
	}
	dl, err := deadletter.Create(path, runID)
	if err != nil {
		return nil, fmt.Errorf("dead letter: %w", err)
	}
	return dl, nil
}

func closeDeadLetter(dl *deadletter.Writer, path string) error {
	if dl == nil {
		return nil
	}
	if err := dl.Close(); err != nil {
		return fmt.Errorf("dead letter: %w", err)
	}
	if n := dl.Count(); n > 0 {
		log.Printf("dead letter: rows=%d path=%s", n, path)
		for _, rc := range dl.Reasons() {
			log.Printf("  %s: %d", rc.Reason, rc.Count)
		}
	}
	return nil
}

// runAudit checks the silver layer and logs the report. It returns the number
// of findings.
func runAudit(ctx context.Context, repo Repository, p config.Pipeline) int {
	chk, err := audit.NewChecker(p.Job, p.Storage.DB.SilverSchema, p.Audit)
	if err != nil {
		log.Printf("%v", &pipeline.PhaseError{Phase: pipeline.PhaseAudit, Err: err})
		return 0
	}
	rep, err := chk.Run(ctx, repo)
	if err != nil {
		log.Printf("%v", &pipeline.PhaseError{Phase: pipeline.PhaseAudit, Err: err})
		return 0
	}
	logAuditReport(rep)
	return rep.Total()
}

// logAuditReport prints exact counts per entity and rule, followed by the
// first few kept findings of each.
func logAuditReport(rep audit.Report) {
	if rep.Total() == 0 {
		log.Printf("audit: no findings")
		return
	}
	shown := map[string]int{}
	for _, rc := range rep.Counts {
		log.Printf("audit: entity=%s rule=%s count=%d", rc.Entity, rc.Rule, rc.Count)
		for _, f := range rep.Findings {
			if f.Entity != rc.Entity || f.Rule != rc.Rule {
				continue
			}
			k := f.Entity + "/" + f.Rule
			if shown[k] >= thisMany {
				break
			}
			shown[k]++
			log.Printf("  %s", f)
		}
	}
}

// logErrSummaries prints aggregated parse errors and rejects. Only the first
// N messages (per errAgg) are shown, followed by per-message totals.
func logErrSummaries(parseAgg, rejectAgg *errAgg) {
	if parseAgg.count > 0 {
		log.Printf("parse errors: %d (showing first %d)", parseAgg.count, len(parseAgg.first))
		for i, s := range parseAgg.first {
			log.Printf("  #%03d: %s", i+1, s)
		}
	}
	if rejectAgg.count > 0 {
		log.Printf("transform rejects: %d", rejectAgg.count)
		for _, b := range rejectAgg.top() {
			log.Printf("  %s: %d", b.msg, b.n)
		}
	}
}

// logGlobalSummary prints final aggregated statistics for the run.
//
// For curation the row invariant is:
//
//	read == written + rejected + deduplicated
//
// where deduplicated counts customer versions that lost the dedup.
func logGlobalSummary(c counters) {
	log.Printf(
		"summary: staged=%d parse_errors=%d read=%d rejected=%d written=%d deduplicated=%d findings=%d",
		c.staged,
		c.parseErrors,
		c.read,
		c.rejected,
		c.written,
		c.read-c.rejected-c.written,
		c.findings,
	)
}

// errAgg aggregates errors
type errAgg struct {
	mu      sync.Mutex
	limit   int
	count   int
	first   []string
	buckets map[string]int
}

func newErrAgg(limit int) *errAgg {
	return &errAgg{limit: limit, buckets: make(map[string]int)}
}

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	a.buckets[msg]++
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
	a.mu.Unlock()
}

type bucket struct {
	msg string
	n   int
}

// top returns every distinct message with its count, most frequent first.
func (a *errAgg) top() []bucket {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]bucket, 0, len(a.buckets))
	for m, n := range a.buckets {
		out = append(out, bucket{msg: m, n: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].msg < out[j].msg
	})
	return out
}

// exitMessage renders err for the operator, naming the failed phase and
// entity when known.
func exitMessage(err error) string {
	var pe *pipeline.PhaseError
	if errors.As(err, &pe) {
		if pe.Entity != "" {
			return fmt.Sprintf("run failed in phase=%s entity=%s: %v", pe.Phase, pe.Entity, pe.Err)
		}
		return fmt.Sprintf("run failed in phase=%s: %v", pe.Phase, pe.Err)
	}
	return fmt.Sprintf("run failed: %v", err)
}
