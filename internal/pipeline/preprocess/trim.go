package preprocess

import (
	"strings"

	"ingestkit/internal/pipeline"
)

func init() {
	Register("trim", func() RowStage { return Trim{} })
}

// Trim strips leading and trailing whitespace from every string-valued
// cell. It runs before type coercion so that numeric and date columns
// see clean text, and is a no-op on cells a prior stage already
// retyped.
type Trim struct{}

func (Trim) Name() string { return "trim" }

func (Trim) ApplyRow(row pipeline.Row) (pipeline.Row, error) {
	for _, k := range row.Keys {
		if v, ok := row.Values[k].(string); ok {
			row.Values[k] = strings.TrimSpace(v)
		}
	}
	return row, nil
}
