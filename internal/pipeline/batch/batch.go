// Package batch holds the columnar batch representation C5/C6 operate
// on: a bounded, in-memory run of rows plus column-wise accessors, so
// that type coercion can prefer column-at-a-time loops over per-row
// iteration as spec §4.5 requires. It stands in for the Polars
// DataFrame used by the original implementation's
// forklift/preprocessors/type_coercion.py.
package batch

import "ingestkit/internal/pipeline"

// RowError pairs a row as it was seen at the moment of rejection with
// the error that rejected it. The Original field is preserved
// bit-for-bit, satisfying spec invariant 6.
type RowError struct {
	Original pipeline.RawRow
	Err      error
}

// Batch is a bounded run of working rows plus their pristine originals.
// Rows start out with only string-valued cells (copied from the raw
// source row) and are mutated in place, column by column, as
// preprocessor stages run; Originals never changes after FromRaw.
type Batch struct {
	Rows      []pipeline.Row
	Originals []pipeline.RawRow
}

// FromRaw builds a Batch from a slice of raw rows, seeding each
// working row with the raw row's string cells.
func FromRaw(raws []pipeline.RawRow) *Batch {
	rows := make([]pipeline.Row, len(raws))
	for i, r := range raws {
		row := pipeline.NewRow(len(r.Keys))
		for _, k := range r.Keys {
			row.Set(k, r.Values[k])
		}
		rows[i] = row
	}
	return &Batch{Rows: rows, Originals: raws}
}

// Len returns the number of rows currently in the batch.
func (b *Batch) Len() int { return len(b.Rows) }

// Column returns the string-valued column data for name across every
// row, plus a presence mask (false where the row's header omitted the
// column entirely, as distinct from present-but-empty). Cells already
// overwritten with a non-string typed value by an earlier stage
// report as absent, since they are no longer meaningful as raw text.
func (b *Batch) Column(name string) (values []string, present []bool) {
	values = make([]string, len(b.Rows))
	present = make([]bool, len(b.Rows))
	for i, row := range b.Rows {
		v, ok := row.Get(name)
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		present[i] = true
		values[i] = s
	}
	return
}

// SetColumn overwrites the value of name in every row from values,
// wherever mask[i] is true; rows with mask[i] false are left
// untouched (used to write back only the successfully coerced cells,
// leaving invalid ones as their original string for diagnostics).
func (b *Batch) SetColumn(name string, values []any, mask []bool) {
	for i, row := range b.Rows {
		if !mask[i] {
			continue
		}
		row.Set(name, values[i])
		b.Rows[i] = row
	}
}

// Split partitions the batch by invalid, an index-aligned mask:
// accepted rows form a new Batch (with matching Originals), and
// rejected rows are rendered as RowErrors carrying msgFor(i).
func (b *Batch) Split(invalid []bool, msgFor func(i int) error) (accepted *Batch, rejected []RowError) {
	accepted = &Batch{}
	for i, row := range b.Rows {
		if invalid[i] {
			rejected = append(rejected, RowError{Original: b.Originals[i], Err: msgFor(i)})
			continue
		}
		accepted.Rows = append(accepted.Rows, row)
		accepted.Originals = append(accepted.Originals, b.Originals[i])
	}
	return accepted, rejected
}
