// Package staging loads raw CRM and ERP extracts into the bronze layer.
//
// Every bronze table is replaced inside one snapshot: a table is truncated,
// its extract (if any) is streamed through the CSV parser into batched
// appends, and the snapshot commits only after all tables loaded. A table
// without a configured source ends up empty.
package staging

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"dwh/internal/config"
	"dwh/internal/datasource"
	"dwh/internal/datasource/file"
	"dwh/internal/datasource/httpds"
	"dwh/internal/metrics"
	csvparser "dwh/internal/parser/csv"
	"dwh/internal/pipeline"
	"dwh/internal/schema"
	"dwh/internal/storage"
	"dwh/internal/transformer"

	"golang.org/x/sync/errgroup"
)

// Options configures one staging run.
type Options struct {
	Job           string
	Sources       []config.Source
	Parser        config.Parser
	BronzeSchema  string
	AutoCreate    bool
	BatchSize     int
	ChannelBuffer int

	// OnParseError receives soft row errors. It may be called from the
	// reader goroutine.
	OnParseError func(table string, line int, err error)
}

// FromPipeline maps a pipeline file onto Options.
func FromPipeline(p config.Pipeline) Options {
	return Options{
		Job:           p.Job,
		Sources:       p.Staging.Sources,
		Parser:        p.Staging.Parser,
		BronzeSchema:  p.Storage.DB.BronzeSchema,
		AutoCreate:    p.Storage.DB.AutoCreateTable,
		BatchSize:     p.Runtime.BatchSize,
		ChannelBuffer: p.Runtime.ChannelBuffer,
	}
}

// TableResult reports one bronze table.
type TableResult struct {
	Table       string
	Source      string
	Rows        int64
	ParseErrors int64
	Elapsed     time.Duration
}

// Result reports a staging run.
type Result struct {
	Tables      []TableResult
	Rows        int64
	ParseErrors int64
}

// Test seams.
var (
	openSourceFn    = openSource
	streamCSVRowsFn = csvparser.StreamCSVRows
)

func openSource(path string) datasource.Source {
	if httpds.IsURL(path) {
		return httpds.NewRemote(nil, path)
	}
	return file.NewLocal(path)
}

// LoadStaging replaces the content of every bronze table. Failures are
// *pipeline.PhaseError values; the previous bronze content is kept.
func LoadStaging(ctx context.Context, repo storage.Repository, opt Options) (Result, error) {
	var res Result
	if opt.Parser.Kind != "" && opt.Parser.Kind != "csv" {
		return res, &pipeline.PhaseError{Phase: pipeline.PhaseStage, Err: fmt.Errorf("unsupported parser.kind=%s", opt.Parser.Kind)}
	}
	if opt.BatchSize <= 0 {
		opt.BatchSize = config.DefaultBatchSize
	}
	if opt.ChannelBuffer <= 0 {
		opt.ChannelBuffer = config.DefaultChannelBuffer
	}

	sources := make(map[string]string, len(opt.Sources))
	for _, s := range opt.Sources {
		if _, ok := schema.Bronze(s.Table); !ok {
			return res, &pipeline.PhaseError{Entity: s.Table, Phase: pipeline.PhaseStage, Err: fmt.Errorf("unknown bronze table")}
		}
		sources[s.Table] = s.Path
	}

	tables := schema.BronzeTables(opt.BronzeSchema)
	if opt.AutoCreate {
		if err := repo.EnsureTables(ctx, tables); err != nil {
			return res, &pipeline.PhaseError{Phase: pipeline.PhaseStage, Err: fmt.Errorf("ensure tables: %w", err)}
		}
	}

	snap, err := repo.Begin(ctx)
	if err != nil {
		return res, &pipeline.PhaseError{Phase: pipeline.PhaseStage, Err: fmt.Errorf("begin snapshot: %w", err)}
	}
	defer snap.Rollback(context.WithoutCancel(ctx))

	for _, t := range tables {
		tr, err := loadTable(ctx, snap, t, sources[t.Name], opt)
		metrics.RecordStep(opt.Job, t.Name, pipeline.PhaseStage, err, tr.Elapsed)
		metrics.RecordRows(opt.Job, t.Name, "read", tr.Rows)
		metrics.RecordRows(opt.Job, t.Name, "parse_errors", tr.ParseErrors)
		if err != nil {
			return res, &pipeline.PhaseError{Entity: t.Name, Phase: pipeline.PhaseStage, Err: err}
		}
		res.Tables = append(res.Tables, tr)
		res.Rows += tr.Rows
		res.ParseErrors += tr.ParseErrors
	}

	err = snap.Commit(ctx)
	metrics.RecordCommit(opt.Job, schema.LayerBronze, err)
	if err != nil {
		return res, &pipeline.PhaseError{Phase: pipeline.PhaseCommit, Err: fmt.Errorf("bronze snapshot: %w", err)}
	}
	log.Printf("stage: committed tables=%d rows=%d parse_errors=%d", len(res.Tables), res.Rows, res.ParseErrors)
	return res, nil
}

func loadTable(ctx context.Context, snap storage.Snapshot, t schema.Table, path string, opt Options) (TableResult, error) {
	start := time.Now()
	tr := TableResult{Table: t.Name, Source: path}

	if err := snap.Truncate(ctx, t); err != nil {
		tr.Elapsed = time.Since(start)
		return tr, fmt.Errorf("truncate: %w", err)
	}
	if path == "" {
		tr.Elapsed = time.Since(start)
		log.Printf("stage: table=%s no source configured, left empty", t.FQN())
		return tr, nil
	}

	src, err := openSourceFn(path).Open(ctx)
	if err != nil {
		tr.Elapsed = time.Since(start)
		return tr, fmt.Errorf("source open: %w", err)
	}

	var parseErrors atomic.Int64
	onErr := func(line int, err error) {
		parseErrors.Add(1)
		if opt.OnParseError != nil {
			opt.OnParseError(t.Name, line, err)
		}
	}

	cols := t.ColumnNames()
	rows := make(chan *transformer.Row, opt.ChannelBuffer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(rows)
		if err := streamCSVRowsFn(gctx, src, cols, opt.Parser.Options, rows, onErr); err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		return nil
	})

	var written int64
	g.Go(func() error {
		n, err := storage.LoadBatches(gctx, t.FQN(), cols, rows, opt.BatchSize, storage.CopyInto(snap, t))
		written = n
		return err
	})

	err = g.Wait()
	for r := range rows {
		r.Free()
	}

	tr.Rows = written
	tr.ParseErrors = parseErrors.Load()
	tr.Elapsed = time.Since(start)
	if err != nil {
		return tr, err
	}
	log.Printf("stage: table=%s source=%s rows=%d parse_errors=%d elapsed=%s",
		t.FQN(), path, tr.Rows, tr.ParseErrors, tr.Elapsed.Truncate(time.Millisecond))
	return tr, nil
}
