// Package validate implements C6: required-field enforcement and
// dedup-key tracking across one table's ingest. Grounded on _required_ok and the
// seen_keys/__forklift_skip__ dedup logic in
// original_source/src/forklift/engine/engine.py's
// _process_dataframe_rows.
package validate

import (
	"fmt"
	"strings"

	"ingestkit/internal/ingesterr"
	"ingestkit/internal/pipeline"
	"ingestkit/internal/pipeline/batch"
	"ingestkit/internal/schema"
)

// Stage is the BatchStage applying required-field and dedup-key rules.
// It is stateful across calls: seenKeys persists for the lifetime of a
// table's ingest so duplicates are caught across batch boundaries, not
// just within one.
type Stage struct {
	schema   *schema.Schema
	seenKeys map[string]struct{}
}

// New builds a validation stage bound to s. A fresh Stage must be used
// per logical table, since dedup state is not meaningful across
// tables.
func New(s *schema.Schema) *Stage {
	return &Stage{schema: s, seenKeys: make(map[string]struct{})}
}

func (st *Stage) Name() string { return "row_validation" }

// ApplyBatch checks every row's required fields, then — if the schema
// declares a dedup key — flags every row after the first with a given
// key as a skip rather than a rejection. Skipped rows remain in the
// accepted batch and the driver passes them to the sink's Write like
// any accepted row; the sink reads the skip flag via
// Row.IsSkipFlagged, counts the row in Read only, and does not write
// it.
func (st *Stage) ApplyBatch(b *batch.Batch) (*batch.Batch, []batch.RowError) {
	if st.schema == nil {
		return b, nil
	}

	n := b.Len()
	invalid := make([]bool, n)
	reasons := make([]error, n)

	for i := range b.Rows {
		if err := st.checkRequired(b.Rows[i]); err != nil {
			invalid[i] = true
			reasons[i] = err
			continue
		}
		if st.schema.RequiresDedup() {
			st.applyDedup(&b.Rows[i])
		}
	}

	return b.Split(invalid, func(i int) error { return reasons[i] })
}

// checkRequired enforces spec §4.6: a required field absent from the
// row entirely (header omitted it) is tolerated; a required field
// present but null is rejected unless the schema's nulls extension
// permits required nulls.
func (st *Stage) checkRequired(row pipeline.Row) error {
	for name, required := range st.schema.Required {
		if !required {
			continue
		}
		v, present := row.Get(name)
		if !present {
			continue
		}
		if v == nil {
			if st.schema.AllowRequiredNulls {
				continue
			}
			return ingesterr.NewValidationError(name, "required field is null")
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			if st.schema.AllowRequiredNulls {
				continue
			}
			return ingesterr.NewValidationError(name, "required field is blank")
		}
	}
	return nil
}

// applyDedup computes the row's dedup key from the schema's declared
// key fields and marks the row skip-flagged if that key was already
// seen, first-occurrence-wins.
func (st *Stage) applyDedup(row *pipeline.Row) {
	key := dedupKey(*row, st.schema.DedupKeys)
	if _, seen := st.seenKeys[key]; seen {
		row.Set(pipeline.SkipFlagKey, true)
		return
	}
	st.seenKeys[key] = struct{}{}
}

// dedupKey renders the tuple of dedup field values as a single
// delimited string. A nil (null) component renders as a sentinel
// distinguishable from any string value, so a row missing part of its
// key dedups consistently against other rows missing the same part.
func dedupKey(row pipeline.Row, keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		v, ok := row.Get(k)
		if !ok || v == nil {
			parts[i] = "\x00null\x00"
			continue
		}
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, "\x1f")
}
