// Package source defines the adapter contract C2 implementations
// satisfy: discover a set of logical tables, and stream each table's
// rows as RawRow. Grounded on BaseInput in the original
// implementation's inputs/base.py, split into a table-discovery phase
// (get_tables) and a row-streaming phase (iter_rows) so the driver can
// size batches per table without loading an entire table into memory.
package source

import (
	"context"

	"ingestkit/internal/pipeline"
)

// Table names one logical source of rows — a CSV file, a fixed-width
// file, a single database table, or a dump file's INSERT statements
// for one target table.
type Table struct {
	Name   string
	Schema string // database schema name; "" for file-backed sources

	// Open returns a fresh RowReader over this table's rows. Called
	// once per table by the driver.
	Open func(ctx context.Context) (RowReader, error)
}

// RowReader streams one table's rows. Next returns ok=false with a nil
// error at clean end of stream.
type RowReader interface {
	Next(ctx context.Context) (row pipeline.RawRow, ok bool, err error)
	Close() error
}

// Adapter discovers the tables a source exposes. Table discovery
// (Tables) and per-table streaming (Table.Open) are deliberately
// separate so the driver can log and size work per table before
// opening any row cursor.
type Adapter interface {
	Tables(ctx context.Context) ([]Table, error)
	Close() error
}
