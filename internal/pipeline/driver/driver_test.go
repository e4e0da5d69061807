package driver

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingestkit/internal/pipeline"
	"ingestkit/internal/schema"
	"ingestkit/internal/sink"
	"ingestkit/internal/source"
)

// fakeAdapter is a minimal in-memory source.Adapter backing the
// driver's end-to-end tests, playing the role sink.Memory plays on the
// output side.
type fakeAdapter struct {
	tables []source.Table
}

func (a *fakeAdapter) Tables(ctx context.Context) ([]source.Table, error) { return a.tables, nil }
func (a *fakeAdapter) Close() error                                       { return nil }

func fakeTable(name string, rows []pipeline.RawRow) source.Table {
	return source.Table{
		Name: name,
		Open: func(ctx context.Context) (source.RowReader, error) {
			return &fakeReader{rows: rows}, nil
		},
	}
}

type fakeReader struct {
	rows []pipeline.RawRow
	pos  int
}

func (r *fakeReader) Next(ctx context.Context) (pipeline.RawRow, bool, error) {
	if r.pos >= len(r.rows) {
		return pipeline.RawRow{}, false, nil
	}
	row := r.rows[r.pos]
	r.pos++
	return row, true, nil
}

func (r *fakeReader) Close() error { return nil }

func rawRow(cells map[string]string) pipeline.RawRow {
	keys := make([]string, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	return pipeline.NewRawRow(keys, cells)
}

func mustSchema(t *testing.T, toml string) *schema.Schema {
	t.Helper()
	s, err := schema.LoadTOML(strings.NewReader(toml))
	require.NoError(t, err)
	return s
}

// S1 — CSV happy path through coercion and validation: every row is
// well-formed, so all of them reach Write and none are quarantined.
func TestDriverHappyPath(t *testing.T) {
	sch := mustSchema(t, `
[[fields]]
name = "id"
type = "integer"

[[fields]]
name = "name"
type = "string"
`)
	src := &fakeAdapter{tables: []source.Table{
		fakeTable("people", []pipeline.RawRow{
			rawRow(map[string]string{"id": "1", "name": "Amy"}),
			rawRow(map[string]string{"id": "2", "name": "Ben"}),
		}),
	}}
	mem := &sink.Memory{}
	d := New(Config{
		Source:        src,
		Sink:          mem,
		Schema:        sch,
		Preprocessors: []string{"trim", "type_coercion"},
	})

	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, int64(2), mem.Counters().Read)
	assert.Equal(t, int64(2), mem.Counters().Kept)
	assert.Equal(t, int64(0), mem.Counters().Rejected)
	require.Len(t, mem.Written, 2)
	v, ok := mem.Written[0].Get("_table")
	require.True(t, ok)
	assert.Equal(t, "people", v)
}

// S2 — one row fails coercion and is quarantined with its original
// raw cells preserved, while the well-formed row still reaches Write.
func TestDriverQuarantinesCoercionFailure(t *testing.T) {
	sch := mustSchema(t, `
[[fields]]
name = "id"
type = "integer"
`)
	src := &fakeAdapter{tables: []source.Table{
		fakeTable("t", []pipeline.RawRow{
			rawRow(map[string]string{"id": "1"}),
			rawRow(map[string]string{"id": "not-a-number"}),
		}),
	}}
	mem := &sink.Memory{}
	d := New(Config{
		Source:        src,
		Sink:          mem,
		Schema:        sch,
		Preprocessors: []string{"type_coercion"},
	})

	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, int64(2), mem.Counters().Read)
	assert.Equal(t, int64(1), mem.Counters().Kept)
	assert.Equal(t, int64(1), mem.Counters().Rejected)
	require.Len(t, mem.Quarantined, 1)
	orig, ok := mem.Quarantined[0].Original.Get("id")
	require.True(t, ok)
	assert.Equal(t, "not-a-number", orig)
	assert.Contains(t, mem.Quarantined[0].Err.Error(), "id")
}

// S3 — a dedup key configured on the schema causes the second row
// sharing a key to be counted read but neither kept nor rejected.
func TestDriverDedupSkipsDuplicate(t *testing.T) {
	sch := mustSchema(t, `
[[fields]]
name = "id"
type = "integer"

[x-csv.dedupe]
keys = ["id"]
`)
	src := &fakeAdapter{tables: []source.Table{
		fakeTable("t", []pipeline.RawRow{
			rawRow(map[string]string{"id": "1"}),
			rawRow(map[string]string{"id": "1"}),
			rawRow(map[string]string{"id": "2"}),
		}),
	}}
	mem := &sink.Memory{}
	d := New(Config{
		Source:        src,
		Sink:          mem,
		Schema:        sch,
		Preprocessors: []string{"type_coercion"},
	})

	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, int64(3), mem.Counters().Read)
	assert.Equal(t, int64(2), mem.Counters().Kept)
	assert.Equal(t, int64(0), mem.Counters().Rejected)
	assert.Equal(t, int64(1), mem.Counters().Skipped())
}

// Batch boundaries must not change results: forcing a tiny batch size
// so that table "t" is read across several READ_BATCH iterations still
// yields the same totals as a single batch would.
func TestDriverSmallBatchSizeMatchesSingleBatch(t *testing.T) {
	sch := mustSchema(t, `
[[fields]]
name = "id"
type = "integer"
`)
	rows := make([]pipeline.RawRow, 0, 7)
	for i := 0; i < 7; i++ {
		rows = append(rows, rawRow(map[string]string{"id": "1"}))
	}
	src := &fakeAdapter{tables: []source.Table{fakeTable("t", rows)}}
	mem := &sink.Memory{}
	d := New(Config{
		Source:        src,
		Sink:          mem,
		Schema:        sch,
		Preprocessors: []string{"type_coercion"},
		BatchSize:     2,
	})

	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, int64(7), mem.Counters().Read)
	assert.Equal(t, int64(7), mem.Counters().Kept)
}

func TestDriverUnknownPreprocessorIsConfigError(t *testing.T) {
	src := &fakeAdapter{tables: nil}
	mem := &sink.Memory{}
	d := New(Config{
		Source:        src,
		Sink:          mem,
		Preprocessors: []string{"does_not_exist"},
	})

	err := d.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config error")
}
