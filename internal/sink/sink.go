// Package sink defines C3, the contract between the pipeline driver and
// whatever finalizes accepted rows and rejected-row diagnostics into
// durable artifacts. The real implementation is internal/sink/parquet;
// Memory in this package is a fake used by driver tests so they do not
// depend on a filesystem.
package sink

import (
	"context"

	"ingestkit/internal/pipeline"
)

// Adapter accepts typed rows and rejected-row events for the duration
// of a run. Open prepares destination artifacts; Close flushes and
// finalizes them. Between Open and Close, Write and Quarantine are
// called from the pipeline driver only. With the driver's default
// MaxParallelTables of 1 they are never called concurrently; above 1,
// calls for different tables can arrive from different goroutines
// (the parquet Sink is safe for that, Memory is not).
type Adapter interface {
	Open(ctx context.Context) error

	// Write accepts one typed, post-validation row. row carries
	// pipeline.TableKey identifying its logical table. A
	// skip-flagged row increments the read counter only.
	Write(ctx context.Context, row pipeline.Row) error

	// Quarantine records one rejected row alongside the error that
	// rejected it, preserving the original row bit-for-bit.
	Quarantine(ctx context.Context, original pipeline.RawRow, err error) error

	Close(ctx context.Context) error

	// Counters reports the current read/kept/rejected totals. Valid
	// at any point after Open, authoritative only after Close.
	Counters() pipeline.Counters
}

// Memory is an in-process Adapter fake: accepted rows and quarantine
// entries are kept in slices rather than written to disk. Used by
// driver tests that need to assert on emitted rows without
// exercising the Parquet writer.
type Memory struct {
	opened bool
	closed bool

	Written     []pipeline.Row
	Quarantined []MemoryQuarantineEntry
	counters    pipeline.Counters
}

// MemoryQuarantineEntry is one recorded Quarantine call.
type MemoryQuarantineEntry struct {
	Original pipeline.RawRow
	Err      error
}

func (m *Memory) Open(ctx context.Context) error {
	m.opened = true
	return nil
}

func (m *Memory) Write(ctx context.Context, row pipeline.Row) error {
	m.counters.Read++
	if row.IsSkipFlagged() {
		return nil
	}
	m.counters.Kept++
	m.Written = append(m.Written, row.ForSink())
	return nil
}

func (m *Memory) Quarantine(ctx context.Context, original pipeline.RawRow, err error) error {
	m.counters.Read++
	m.counters.Rejected++
	m.Quarantined = append(m.Quarantined, MemoryQuarantineEntry{Original: original, Err: err})
	return nil
}

func (m *Memory) Close(ctx context.Context) error {
	m.closed = true
	return nil
}

func (m *Memory) Counters() pipeline.Counters { return m.counters }
