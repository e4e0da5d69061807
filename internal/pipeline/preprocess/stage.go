// Package preprocess defines the two stage shapes the pipeline driver
// (C7) chains together — a cheap per-row transform and a batch-wide,
// column-oriented transform — plus a name-keyed registry so row stages
// can be selected by name from the run's configured preprocessor list
// rather than wired by hand. The registry mirrors the init()-registration pattern
// the teacher repository uses for its dialect and introspection
// plugins (internal/dialect, internal/introspect/mysql).
package preprocess

import (
	"ingestkit/internal/pipeline"
	"ingestkit/internal/pipeline/batch"
)

// RowStage transforms one row at a time. It is the right shape for
// stateless, column-independent transforms such as whitespace
// trimming.
type RowStage interface {
	Name() string
	ApplyRow(row pipeline.Row) (pipeline.Row, error)
}

// BatchStage transforms an entire batch at once, favoring
// column-at-a-time loops over per-row dispatch. Type coercion and
// validation are both BatchStages: coercion because a column's parse
// cascade is the same function applied down the whole column, and
// validation because dedup tracking is inherently a whole-batch
// concern.
type BatchStage interface {
	Name() string
	ApplyBatch(b *batch.Batch) (accepted *batch.Batch, rejected []batch.RowError)
}

var registry = map[string]func() RowStage{}

// Register adds a named row-stage constructor to the registry. Called
// from the init() of the file defining the stage.
func Register(name string, ctor func() RowStage) {
	registry[name] = ctor
}

// Lookup returns a fresh instance of the named row stage, if one was
// registered.
func Lookup(name string) (RowStage, bool) {
	ctor, ok := registry[name]
	if !ok {
		return nil, false
	}
	return ctor(), true
}

// Adapt lifts a RowStage into a BatchStage by applying it to each row
// in turn, so the driver's chain can mix row-level and batch-level
// stages without distinguishing them at the call site.
func Adapt(stage RowStage) BatchStage {
	return rowStageAdapter{stage: stage}
}

type rowStageAdapter struct{ stage RowStage }

func (a rowStageAdapter) Name() string { return a.stage.Name() }

func (a rowStageAdapter) ApplyBatch(b *batch.Batch) (*batch.Batch, []batch.RowError) {
	accepted := &batch.Batch{}
	var rejected []batch.RowError
	for i, row := range b.Rows {
		out, err := a.stage.ApplyRow(row)
		if err != nil {
			rejected = append(rejected, batch.RowError{Original: b.Originals[i], Err: err})
			continue
		}
		accepted.Rows = append(accepted.Rows, out)
		accepted.Originals = append(accepted.Originals, b.Originals[i])
	}
	return accepted, rejected
}
