// Package driver implements the ingest pipeline driver (C7): it
// iterates a source adapter's tables, buffers rows into batches, runs
// them through the preprocessor chain and row validator, and routes
// the results to a sink adapter while maintaining accept/skip/reject
// counters. This mirrors Engine.run in the original implementation's
// forklift/engine/engine.py, reimplemented around explicit batch and
// stage types instead of a Polars DataFrame.
package driver

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ingestkit/internal/ingesterr"
	"ingestkit/internal/pipeline"
	"ingestkit/internal/pipeline/batch"
	"ingestkit/internal/pipeline/coerce"
	"ingestkit/internal/pipeline/preprocess"
	"ingestkit/internal/pipeline/validate"
	"ingestkit/internal/schema"
	"ingestkit/internal/sink"
	"ingestkit/internal/source"
)

// DefaultBatchSize is the number of raw rows accumulated per
// READ_BATCH transition, matching the original implementation's
// processingChunkSize.
const DefaultBatchSize = 50_000

// Config parameterizes a Driver run. Source and Sink are required;
// Schema may be nil for a schema-less pass-through run, in which case
// the preprocessor chain should not name "type_coercion" and the sink
// performs no secondary validation either.
type Config struct {
	Source source.Adapter
	Sink   sink.Adapter
	Schema *schema.Schema

	// Preprocessors is the ordered list of stage names forming the
	// chain run at COERCE. "type_coercion" resolves to a schema-bound
	// coerce.Stage; any other name is looked up in the preprocess
	// registry as a RowStage and adapted to run batch-wise. Empty
	// means no preprocessing runs at all (raw strings reach the row
	// validator as-is).
	Preprocessors []string

	BatchSize int

	// MaxParallelTables bounds how many tables run concurrently.
	// Values <= 1 process tables strictly sequentially, preserving
	// spec's default single-task model.
	MaxParallelTables int

	Logger *zap.SugaredLogger
}

// Driver runs the OPEN_SINK -> (READ_BATCH -> COERCE -> VALIDATE ->
// EMIT)* -> CLOSE_SINK state machine described by spec.md §4.7,
// grounded on Engine.run in the original implementation's
// forklift/engine/engine.py.
type Driver struct {
	cfg Config
}

// New builds a Driver from cfg, filling in defaults for BatchSize and
// Logger when left zero.
func New(cfg Config) *Driver {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Logger == nil {
		logger, err := zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
		cfg.Logger = logger.Sugar()
	}
	return &Driver{cfg: cfg}
}

// Run discovers the source's tables and processes each one in turn
// (or, when MaxParallelTables > 1, across a bounded worker pool). Once
// the sink has opened, it is closed exactly once regardless of
// outcome; if Open itself fails, Run returns without calling Close.
func (d *Driver) Run(ctx context.Context) error {
	if err := d.cfg.Sink.Open(ctx); err != nil {
		return ingesterr.NewSinkError("open", err)
	}
	defer func() {
		if err := d.cfg.Sink.Close(ctx); err != nil {
			d.cfg.Logger.Errorw("sink close failed", "error", err)
		}
	}()

	tables, err := d.cfg.Source.Tables(ctx)
	if err != nil {
		return ingesterr.NewSourceError("list tables", err)
	}

	stages, err := d.buildStages()
	if err != nil {
		return err
	}

	if d.cfg.MaxParallelTables <= 1 {
		for _, table := range tables {
			if err := d.runTable(ctx, table, stages); err != nil {
				return err
			}
		}
		return nil
	}
	return d.runTablesParallel(ctx, tables, stages)
}

// runTablesParallel fans out across an errgroup bounded by
// MaxParallelTables. Each table gets its own validator instance (built
// inside runTable), so dedup state never crosses goroutines; per-table
// writer mutual exclusion is the sink's responsibility (spec §5).
func (d *Driver) runTablesParallel(ctx context.Context, tables []source.Table, stages []preprocess.BatchStage) error {
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, d.cfg.MaxParallelTables)
	var wg sync.WaitGroup
	for _, table := range tables {
		table := table
		sem <- struct{}{}
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			defer func() { <-sem }()
			return d.runTable(gctx, table, stages)
		})
	}
	wg.Wait()
	return g.Wait()
}

// buildStages resolves Config.Preprocessors into concrete BatchStages,
// in order. "type_coercion" requires a non-nil schema to bind against.
func (d *Driver) buildStages() ([]preprocess.BatchStage, error) {
	stages := make([]preprocess.BatchStage, 0, len(d.cfg.Preprocessors))
	for _, name := range d.cfg.Preprocessors {
		if name == "type_coercion" {
			if d.cfg.Schema == nil {
				return nil, ingesterr.NewConfigError("preprocessor \"type_coercion\" requires a schema", nil)
			}
			stages = append(stages, coerce.New(d.cfg.Schema))
			continue
		}
		row, ok := preprocess.Lookup(name)
		if !ok {
			return nil, ingesterr.NewConfigError(fmt.Sprintf("unknown preprocessor %q", name), nil)
		}
		stages = append(stages, preprocess.Adapt(row))
	}
	return stages, nil
}

// runTable executes READ_BATCH -> COERCE -> VALIDATE -> EMIT in a loop
// over one table's rows until its reader is exhausted.
func (d *Driver) runTable(ctx context.Context, table source.Table, stages []preprocess.BatchStage) error {
	reader, err := table.Open(ctx)
	if err != nil {
		return ingesterr.NewSourceError(fmt.Sprintf("open table %q", table.Name), err)
	}
	defer reader.Close()

	validator := validate.New(d.cfg.Schema)

	for {
		raws, exhausted, err := readBatch(ctx, reader, d.cfg.BatchSize)
		if err != nil {
			return ingesterr.NewSourceError(fmt.Sprintf("read table %q", table.Name), err)
		}
		if len(raws) > 0 {
			if err := d.processBatch(ctx, table.Name, raws, stages, validator); err != nil {
				return err
			}
		}
		if exhausted {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	d.cfg.Logger.Infow("table done", "table", table.Name)
	return nil
}

// readBatch accumulates up to n raw rows from reader, returning
// exhausted=true once the reader reports clean end of stream (the
// residual, possibly-empty batch is still returned for processing).
func readBatch(ctx context.Context, reader source.RowReader, n int) (rows []pipeline.RawRow, exhausted bool, err error) {
	rows = make([]pipeline.RawRow, 0, n)
	for len(rows) < n {
		if err := ctx.Err(); err != nil {
			return rows, false, err
		}
		row, ok, err := reader.Next(ctx)
		if err != nil {
			return rows, false, err
		}
		if !ok {
			return rows, true, nil
		}
		rows = append(rows, row)
	}
	return rows, false, nil
}

// processBatch runs one READ_BATCH's worth of rows through COERCE,
// VALIDATE, and EMIT, tagging every emitted row with the table name.
func (d *Driver) processBatch(ctx context.Context, tableName string, raws []pipeline.RawRow, stages []preprocess.BatchStage, validator *validate.Stage) error {
	current := batch.FromRaw(raws)
	var rejected []batch.RowError

	for _, stage := range stages {
		accepted, stageRejected := stage.ApplyBatch(current)
		rejected = append(rejected, stageRejected...)
		current = accepted
	}

	accepted, validationRejected := validator.ApplyBatch(current)
	rejected = append(rejected, validationRejected...)

	for _, re := range rejected {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.cfg.Sink.Quarantine(ctx, re.Original, re.Err); err != nil {
			return ingesterr.NewSinkError("quarantine", err)
		}
	}

	for _, row := range accepted.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		row.Set(pipeline.TableKey, tableName)
		if err := d.cfg.Sink.Write(ctx, row); err != nil {
			return ingesterr.NewSinkError("write", err)
		}
	}

	return nil
}
