// Package pipeline holds the vocabulary types shared by every stage of
// the ingest pipeline: raw and typed rows, row results, counters, and
// the civil Date. The driver (C7) that wires the stages together lives
// in internal/pipeline/driver.
package pipeline

// ReservedPrefix starts every reserved internal marker key, such as
// SkipFlagKey. Any key with this prefix is an operational flag, not
// row data.
const ReservedPrefix = "__"

// SkipFlagKey marks a row as a dedup duplicate: counted, not written.
const SkipFlagKey = "__skip__"

// TableKey is the synthetic column naming the logical table that
// produced a row.
const TableKey = "_table"

// RawRow is an insertion-ordered mapping from column name to raw
// string cell, as produced by a source adapter. Ordering is carried
// via Keys rather than Go map iteration, which is unordered.
type RawRow struct {
	Keys   []string
	Values map[string]string
}

// NewRawRow builds a RawRow from ordered keys and a values map.
func NewRawRow(keys []string, values map[string]string) RawRow {
	return RawRow{Keys: keys, Values: values}
}

// Get returns the cell value for name and whether the column was
// present in the row's header at all (as opposed to present but
// empty).
func (r RawRow) Get(name string) (string, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// Clone produces an independent copy of the row, used whenever the
// original must be preserved (e.g. for quarantine) across a mutating
// stage.
func (r RawRow) Clone() RawRow {
	keys := make([]string, len(r.Keys))
	copy(keys, r.Keys)
	values := make(map[string]string, len(r.Values))
	for k, v := range r.Values {
		values[k] = v
	}
	return RawRow{Keys: keys, Values: values}
}

// ToMap renders the row as a plain map for JSON serialization
// (quarantine log entries), excluding no keys — the original content
// including any reserved-prefixed flags must be preserved bit-for-bit
// for quarantine per spec §3 invariants.
func (r RawRow) ToMap() map[string]any {
	out := make(map[string]any, len(r.Keys))
	for _, k := range r.Keys {
		out[k] = r.Values[k]
	}
	return out
}

// Row is a typed row: an insertion-ordered mapping from column name to
// a canonical-type Go value (int64, float64, decimal.Decimal, bool,
// civil date, time.Time, string, or []byte), plus any operational
// flags set by the validator.
type Row struct {
	Keys   []string
	Values map[string]any
}

// NewRow builds an empty typed row with capacity for n columns.
func NewRow(n int) Row {
	return Row{Keys: make([]string, 0, n), Values: make(map[string]any, n)}
}

// Set assigns value to name, appending to Keys only on first
// assignment so column order reflects first-write order.
func (r *Row) Set(name string, value any) {
	if _, exists := r.Values[name]; !exists {
		r.Keys = append(r.Keys, name)
	}
	r.Values[name] = value
}

// Get returns the value for name and whether it is present.
func (r Row) Get(name string) (any, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// IsSkipFlagged reports whether the row carries the dedup skip marker.
func (r Row) IsSkipFlagged() bool {
	v, ok := r.Values[SkipFlagKey]
	return ok && v == true
}

// ForSink returns a copy of the row with every reserved-prefixed key
// removed, safe to pass to a sink's Write call per spec invariant 2
// (no key beginning with the reserved internal-flag prefix reaches
// Write).
func (r Row) ForSink() Row {
	out := NewRow(len(r.Keys))
	for _, k := range r.Keys {
		if len(k) >= len(ReservedPrefix) && k[:len(ReservedPrefix)] == ReservedPrefix && k != TableKey {
			continue
		}
		out.Set(k, r.Values[k])
	}
	return out
}

// RowResult is a tagged union: exactly one of (typed Row) or (original
// RawRow, error) is meaningful, selected by Err being nil or not.
type RowResult struct {
	Row      Row
	Original RawRow
	Err      error
}

// Accepted builds a RowResult for a successfully processed row.
func Accepted(row Row) RowResult { return RowResult{Row: row} }

// Rejected builds a RowResult carrying the original row and the error
// that caused rejection.
func Rejected(original RawRow, err error) RowResult {
	return RowResult{Original: original, Err: err}
}

// Counters tracks the three monotonically non-decreasing run totals
// defined in spec §3. It is owned and mutated exclusively by the sink,
// per spec §4.7 ("counters are updated by the sink, not the driver").
type Counters struct {
	Read     int64
	Kept     int64
	Rejected int64
}

// Skipped returns the number of rows counted in Read but neither kept
// nor rejected (dedup skips).
func (c Counters) Skipped() int64 { return c.Read - c.Kept - c.Rejected }
