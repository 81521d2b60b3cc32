// Package pipeline curates the bronze layer into the silver layer.
//
// A run has four phases:
//
//	extract    read every bronze table concurrently into typed raw records
//	transform  run the engine entity by entity (dedup, normalize, repair)
//	load       replace every silver table inside ONE snapshot, then commit
//	report     count rows and fingerprint each curated table
//
// The load phase is all-or-nothing: any failure rolls the snapshot back and
// the previous silver content stays visible. Rejected rows never fail a run.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"dwh/internal/config"
	"dwh/internal/metrics"
	"dwh/internal/schema"
	"dwh/internal/storage"
	"dwh/internal/transformer"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
)

// Options configures one curation run.
type Options struct {
	Job           string
	BronzeSchema  string
	SilverSchema  string
	AutoCreate    bool
	ReaderWorkers int
	BatchSize     int

	// RunID labels logs and dead-letter rows. Empty generates a UUID.
	RunID string

	// LoadedAt stamps every silver row. Zero uses the current time.
	LoadedAt time.Time

	// OnReject receives rows the engine could not curate. Calls are
	// sequential.
	OnReject func(transformer.RejectedRow)
}

// FromPipeline maps a pipeline file onto Options.
func FromPipeline(p config.Pipeline) Options {
	return Options{
		Job:           p.Job,
		BronzeSchema:  p.Storage.DB.BronzeSchema,
		SilverSchema:  p.Storage.DB.SilverSchema,
		AutoCreate:    p.Storage.DB.AutoCreateTable,
		ReaderWorkers: p.Runtime.ReaderWorkers,
		BatchSize:     p.Runtime.BatchSize,
	}
}

// EntityResult reports one entity of a run.
type EntityResult struct {
	Entity   string
	Read     int64
	Rejected int64
	Written  int64

	// Fingerprint hashes the curated rows without their load timestamp. Two
	// runs over the same bronze data produce the same value.
	Fingerprint uint64
}

// Result reports a committed run.
type Result struct {
	RunID    string
	LoadedAt time.Time
	Entities []EntityResult
	Elapsed  time.Duration
}

// Entity returns the result for name.
func (r Result) Entity(name string) (EntityResult, bool) {
	for _, e := range r.Entities {
		if e.Entity == name {
			return e, true
		}
	}
	return EntityResult{}, false
}

// Rejected sums rejected rows over all entities.
func (r Result) Rejected() int64 {
	var n int64
	for _, e := range r.Entities {
		n += e.Rejected
	}
	return n
}

// Test seams.
var (
	nowFn      = time.Now
	newRunIDFn = uuid.NewString
)

// LoadCurated replaces the silver layer with the curated content of the
// bronze layer. Failures are returned as *PhaseError.
func LoadCurated(ctx context.Context, repo storage.Repository, opt Options) (Result, error) {
	start := nowFn()
	res := Result{RunID: opt.RunID, LoadedAt: opt.LoadedAt}
	if res.RunID == "" {
		res.RunID = newRunIDFn()
	}
	if res.LoadedAt.IsZero() {
		res.LoadedAt = start
	}
	if opt.BatchSize <= 0 {
		opt.BatchSize = config.DefaultBatchSize
	}
	if opt.ReaderWorkers <= 0 {
		opt.ReaderWorkers = config.DefaultReaderWorkers
	}
	log.Printf("curate: run=%s job=%s readers=%d batch=%d", res.RunID, opt.Job, opt.ReaderWorkers, opt.BatchSize)

	bronze, read, err := extract(ctx, repo, opt)
	if err != nil {
		return res, err
	}

	rejected := make(map[string]int64, len(schema.Entities))
	engine := transformer.NewEngine(res.LoadedAt, func(r transformer.RejectedRow) {
		rejected[r.Entity]++
		if opt.OnReject != nil {
			opt.OnReject(r)
		}
	})
	res.LoadedAt = engine.LoadedAt

	var silver transformer.Silver
	for _, entity := range schema.Entities {
		t0 := time.Now()
		err := engine.Transform(entity, bronze, &silver)
		metrics.RecordStep(opt.Job, entity, PhaseTransform, err, time.Since(t0))
		if err != nil {
			return res, phaseErr(entity, PhaseTransform, err)
		}
		metrics.RecordRows(opt.Job, entity, "rejected", rejected[entity])
	}

	written, err := load(ctx, repo, silver, opt)
	if err != nil {
		return res, err
	}

	for _, entity := range schema.Entities {
		rows := silver.Rows(entity)
		er := EntityResult{
			Entity:      entity,
			Read:        read[entity],
			Rejected:    rejected[entity],
			Written:     written[entity],
			Fingerprint: Fingerprint(rows),
		}
		res.Entities = append(res.Entities, er)
		log.Printf("curate: entity=%s read=%d rejected=%d written=%d fingerprint=%016x",
			er.Entity, er.Read, er.Rejected, er.Written, er.Fingerprint)
	}
	res.Elapsed = nowFn().Sub(start)
	return res, nil
}

// extract reads every bronze table, at most opt.ReaderWorkers at a time.
func extract(ctx context.Context, repo storage.Repository, opt Options) (transformer.Bronze, map[string]int64, error) {
	tables := schema.BronzeTables(opt.BronzeSchema)
	raw := make([][][]any, len(tables))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opt.ReaderWorkers)
	for i, t := range tables {
		g.Go(func() error {
			t0 := time.Now()
			rows, err := repo.ReadTable(gctx, t)
			metrics.RecordStep(opt.Job, t.Name, PhaseExtract, err, time.Since(t0))
			if err != nil {
				return phaseErr(t.Name, PhaseExtract, err)
			}
			raw[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return transformer.Bronze{}, nil, err
	}

	var b transformer.Bronze
	read := make(map[string]int64, len(tables))
	for i, t := range tables {
		if err := b.SetRows(t.Name, raw[i]); err != nil {
			return b, nil, phaseErr(t.Name, PhaseExtract, err)
		}
		read[t.Name] = int64(b.Len(t.Name))
		metrics.RecordRows(opt.Job, t.Name, "read", read[t.Name])
	}
	return b, read, nil
}

// load swaps the silver snapshot.
func load(ctx context.Context, repo storage.Repository, s transformer.Silver, opt Options) (map[string]int64, error) {
	tables := schema.SilverTables(opt.SilverSchema)
	if opt.AutoCreate {
		if err := repo.EnsureTables(ctx, tables); err != nil {
			return nil, phaseErr("", PhaseLoad, fmt.Errorf("ensure tables: %w", err))
		}
	}

	snap, err := repo.Begin(ctx)
	if err != nil {
		return nil, phaseErr("", PhaseLoad, fmt.Errorf("begin snapshot: %w", err))
	}
	defer snap.Rollback(context.WithoutCancel(ctx))

	written := make(map[string]int64, len(tables))
	for _, t := range tables {
		t0 := time.Now()
		rows := s.Rows(t.Name)
		n, err := storage.Replace(ctx, snap, t, rows, opt.BatchSize)
		metrics.RecordStep(opt.Job, t.Name, PhaseLoad, err, time.Since(t0))
		if err != nil {
			log.Printf("curate: load %s failed after=%d rows, rolling back: %v", t.FQN(), n, err)
			return nil, phaseErr(t.Name, PhaseLoad, err)
		}
		written[t.Name] = n
		metrics.RecordRows(opt.Job, t.Name, "written", n)
		metrics.RecordBatches(opt.Job, t.Name, batches(len(rows), opt.BatchSize))
	}

	t0 := time.Now()
	err = snap.Commit(ctx)
	metrics.RecordStep(opt.Job, "", PhaseCommit, err, time.Since(t0))
	metrics.RecordCommit(opt.Job, schema.LayerSilver, err)
	if err != nil {
		return nil, phaseErr("", PhaseCommit, fmt.Errorf("silver snapshot: %w", err))
	}
	return written, nil
}

func batches(rows, size int) int64 {
	if rows == 0 || size <= 0 {
		return 0
	}
	return int64((rows + size - 1) / size)
}

// Fingerprint hashes rows in order, leaving out each row's last column (the
// load timestamp).
func Fingerprint(rows [][]any) uint64 {
	h := xxh3.New()
	for _, r := range rows {
		n := len(r)
		if n > 0 {
			n--
		}
		_, _ = h.WriteString(schema.Canonical(r[:n]))
		_, _ = h.Write([]byte{'\n'})
	}
	return h.Sum64()
}
