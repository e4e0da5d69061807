package parquet

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	parquetfile "github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingestkit/internal/pipeline"
	"ingestkit/internal/schema"
)

func mustSchema(t *testing.T, toml string) *schema.Schema {
	t.Helper()
	s, err := schema.LoadTOML(strings.NewReader(toml))
	require.NoError(t, err)
	return s
}

func typedRow(cells map[string]any) pipeline.Row {
	row := pipeline.NewRow(len(cells))
	for k, v := range cells {
		row.Set(k, v)
	}
	return row
}

func readManifest(t *testing.T, dir string) map[string]int64 {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "_manifest.json"))
	require.NoError(t, err)
	var out map[string]int64
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func readQuarantineLines(t *testing.T, dir string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "_quarantine.jsonl"))
	require.NoError(t, err)
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func parquetRowCount(t *testing.T, path string) int64 {
	t.Helper()
	rdr, err := parquetfile.OpenParquetFile(path, false)
	require.NoError(t, err)
	defer rdr.Close()
	arrowRdr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)
	tbl, err := arrowRdr.ReadTable(context.Background())
	require.NoError(t, err)
	defer tbl.Release()
	return tbl.NumRows()
}

// S1 — CSV happy path: two accepted rows, manifest {2,2,0}.
func TestSinkHappyPath(t *testing.T) {
	dir := t.TempDir()
	s := mustSchema(t, `
[[fields]]
name = "id"
type = "integer"

[[fields]]
name = "name"
type = "string"
`)
	sink := New(Config{Dir: dir, Schema: s})
	ctx := context.Background()
	require.NoError(t, sink.Open(ctx))

	require.NoError(t, sink.Write(ctx, typedRow(map[string]any{"_table": "people", "id": int64(1), "name": "Amy"})))
	require.NoError(t, sink.Write(ctx, typedRow(map[string]any{"_table": "people", "id": int64(2), "name": "Ben"})))
	require.NoError(t, sink.Close(ctx))

	manifest := readManifest(t, dir)
	assert.Equal(t, int64(2), manifest["read"])
	assert.Equal(t, int64(2), manifest["kept"])
	assert.Equal(t, int64(0), manifest["rejected"])

	assert.Equal(t, int64(2), parquetRowCount(t, filepath.Join(dir, "people.parquet")))
	assert.Empty(t, readQuarantineLines(t, dir))
}

// S2 — one row quarantined: manifest {2,1,1}, one quarantine line
// naming the failing column.
func TestSinkQuarantinesRejectedRow(t *testing.T) {
	dir := t.TempDir()
	s := mustSchema(t, `
[[fields]]
name = "id"
type = "integer"

[[fields]]
name = "signup_date"
type = "date"
format = "YYYY-MM-DD"
`)
	sink := New(Config{Dir: dir, Schema: s})
	ctx := context.Background()
	require.NoError(t, sink.Open(ctx))

	require.NoError(t, sink.Write(ctx, typedRow(map[string]any{
		"_table": "people", "id": int64(1), "signup_date": pipeline.Date{Year: 2024, Month: 1, Day: 5},
	})))
	original := pipeline.NewRawRow([]string{"id", "signup_date"}, map[string]string{"id": "2", "signup_date": "not-a-date"})
	require.NoError(t, sink.Quarantine(ctx, original, assertErrorWithColumn("signup_date")))
	require.NoError(t, sink.Close(ctx))

	manifest := readManifest(t, dir)
	assert.Equal(t, int64(2), manifest["read"])
	assert.Equal(t, int64(1), manifest["kept"])
	assert.Equal(t, int64(1), manifest["rejected"])

	lines := readQuarantineLines(t, dir)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0]["error"], "signup_date")
	assert.Equal(t, "2", lines[0]["row"].(map[string]any)["id"])
}

// S3 — dedup skip-flagged row counts toward read but not kept, and is
// never written to the Parquet file.
func TestSinkSkipFlaggedRowCountsReadOnly(t *testing.T) {
	dir := t.TempDir()
	s := mustSchema(t, `
[[fields]]
name = "id"
type = "integer"
`)
	sink := New(Config{Dir: dir, Schema: s})
	ctx := context.Background()
	require.NoError(t, sink.Open(ctx))

	require.NoError(t, sink.Write(ctx, typedRow(map[string]any{"_table": "t", "id": int64(1)})))
	dup := typedRow(map[string]any{"_table": "t", "id": int64(1)})
	dup.Set(pipeline.SkipFlagKey, true)
	require.NoError(t, sink.Write(ctx, dup))
	require.NoError(t, sink.Write(ctx, typedRow(map[string]any{"_table": "t", "id": int64(2)})))
	require.NoError(t, sink.Close(ctx))

	manifest := readManifest(t, dir)
	assert.Equal(t, int64(3), manifest["read"])
	assert.Equal(t, int64(2), manifest["kept"])
	assert.Equal(t, int64(0), manifest["rejected"])
	assert.Equal(t, int64(2), parquetRowCount(t, filepath.Join(dir, "t.parquet")))
}

func TestSinkUnknownCodecIsConfigError(t *testing.T) {
	dir := t.TempDir()
	sink := New(Config{Dir: dir, Codec: "rar"})
	err := sink.Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config error")
}

// Invariant 5: manifest and quarantine artifacts exist after Close even
// when a run reads zero rows.
func TestSinkArtifactsExistOnZeroRows(t *testing.T) {
	dir := t.TempDir()
	sink := New(Config{Dir: dir})
	ctx := context.Background()
	require.NoError(t, sink.Open(ctx))
	require.NoError(t, sink.Close(ctx))

	manifest := readManifest(t, dir)
	assert.Equal(t, int64(0), manifest["read"])
	assert.Equal(t, int64(0), manifest["kept"])
	assert.Equal(t, int64(0), manifest["rejected"])
	assert.Empty(t, readQuarantineLines(t, dir))
}

// S5 — chunked mode flushes a row group at the configured chunk size
// and again at Close for the residual, and the total row count written
// across both flushes matches what was accepted.
func TestSinkChunkedModeFlushesAcrossRowGroups(t *testing.T) {
	dir := t.TempDir()
	s := mustSchema(t, `
[[fields]]
name = "id"
type = "integer"
`)
	sink := New(Config{Dir: dir, Schema: s, Mode: ModeChunked, ChunkSize: 3})
	ctx := context.Background()
	require.NoError(t, sink.Open(ctx))

	for i := 0; i < 7; i++ {
		require.NoError(t, sink.Write(ctx, typedRow(map[string]any{"_table": "t", "id": int64(i)})))
	}
	require.NoError(t, sink.Close(ctx))

	manifest := readManifest(t, dir)
	assert.Equal(t, int64(7), manifest["read"])
	assert.Equal(t, int64(7), manifest["kept"])
	assert.Equal(t, int64(7), parquetRowCount(t, filepath.Join(dir, "t.parquet")))
}

type columnError struct{ col string }

func (e columnError) Error() string { return "type coercion failed: " + e.col }

func assertErrorWithColumn(col string) error { return columnError{col: col} }
