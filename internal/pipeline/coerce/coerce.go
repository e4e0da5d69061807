// Package coerce implements C5, type coercion: for each schema field
// present in a batch, it walks the column once, replacing null tokens
// with nil and parsing every remaining cell into its declared
// canonical type. A row is rejected, naming every column that failed,
// the moment any one of its declared-type columns fails to parse.
// Grounded on the vectorized TypeCoercion.process_dataframe in the
// original implementation's preprocessors/type_coercion.py, adapted
// from Polars column expressions to Batch's column accessors.
package coerce

import (
	"strings"

	"ingestkit/internal/ingesterr"
	"ingestkit/internal/pipeline/batch"
	"ingestkit/internal/schema"
)

// Stage is the BatchStage that applies a schema's declared field types
// to every row of a batch.
type Stage struct {
	schema *schema.Schema
}

// New builds a coercion stage bound to s.
func New(s *schema.Schema) *Stage {
	return &Stage{schema: s}
}

func (st *Stage) Name() string { return "type_coercion" }

// ApplyBatch mutates b's rows in place, column by column, and splits
// the result into accepted and rejected rows.
func (st *Stage) ApplyBatch(b *batch.Batch) (*batch.Batch, []batch.RowError) {
	n := b.Len()
	invalid := make([]bool, n)
	failingCols := make([][]string, n)

	for _, field := range st.schema.Fields {
		if field.Type == schema.TypeUntyped {
			st.applyUntyped(b, field, n)
			continue
		}
		values, present := b.Column(field.Name)
		if !anyTrue(present) {
			continue
		}

		out := make([]any, n)
		mask := make([]bool, n)
		nullTokens := st.schema.NullTokensFor(field.Name)

		var trueSet, falseSet map[string]struct{}
		if field.Type == schema.TypeBoolean {
			trueSet = tokenSet(defaultTrueTokens, field.BoolTrue)
			falseSet = tokenSet(defaultFalseTokens, field.BoolFalse)
		}

		for i := 0; i < n; i++ {
			if !present[i] {
				continue
			}
			raw := values[i]
			trimmed := strings.TrimSpace(raw)

			if trimmed == "" {
				mask[i] = true
				continue
			}
			if _, isNull := nullTokens[raw]; isNull {
				mask[i] = true
				continue
			}
			if _, isNull := nullTokens[trimmed]; isNull {
				mask[i] = true
				continue
			}

			var ok bool
			switch field.Type {
			case schema.TypeString:
				out[i], ok = trimmed, true
			case schema.TypeInteger:
				out[i], ok = parseInteger(trimmed)
			case schema.TypeNumber:
				out[i], ok = parseFloat(trimmed)
			case schema.TypeDecimal:
				out[i], ok = parseDecimal(trimmed, field.DecimalScale)
			case schema.TypeBoolean:
				out[i], ok = parseBool(trimmed, trueSet, falseSet)
			case schema.TypeDate:
				out[i], ok = parseDate(trimmed, field.Formats)
			case schema.TypeDatetime:
				out[i], ok = parseDatetime(trimmed, field.Formats)
			case schema.TypeBinary:
				out[i], ok = parseBinary(trimmed)
			default:
				out[i], ok = trimmed, true
			}

			if !ok {
				invalid[i] = true
				failingCols[i] = append(failingCols[i], field.Name)
				continue
			}
			mask[i] = true
		}

		b.SetColumn(field.Name, out, mask)
	}

	return b.Split(invalid, func(i int) error {
		return ingesterr.NewCoercionError(failingCols[i])
	})
}

// applyUntyped only performs null-token replacement; an untyped field
// never fails coercion, since it has no declared type to fail against.
func (st *Stage) applyUntyped(b *batch.Batch, field *schema.Field, n int) {
	values, present := b.Column(field.Name)
	if !anyTrue(present) {
		return
	}
	nullTokens := st.schema.NullTokensFor(field.Name)
	out := make([]any, n)
	mask := make([]bool, n)
	for i := 0; i < n; i++ {
		if !present[i] {
			continue
		}
		raw := values[i]
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			mask[i] = true
			continue
		}
		if _, isNull := nullTokens[raw]; isNull {
			mask[i] = true
			continue
		}
		if _, isNull := nullTokens[trimmed]; isNull {
			mask[i] = true
			continue
		}
		out[i] = trimmed
		mask[i] = true
	}
	b.SetColumn(field.Name, out, mask)
}

func anyTrue(mask []bool) bool {
	for _, v := range mask {
		if v {
			return true
		}
	}
	return false
}
