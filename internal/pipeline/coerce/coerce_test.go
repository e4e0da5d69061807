package coerce

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingestkit/internal/pipeline"
	"ingestkit/internal/pipeline/batch"
	"ingestkit/internal/schema"
)

func mustSchema(t *testing.T, toml string) *schema.Schema {
	t.Helper()
	s, err := schema.LoadTOML(strings.NewReader(toml))
	require.NoError(t, err)
	return s
}

func rawRow(keys []string, values map[string]string) pipeline.RawRow {
	return pipeline.NewRawRow(keys, values)
}

// S1 — CSV happy path.
func TestCoerceHappyPath(t *testing.T) {
	s := mustSchema(t, `
[[fields]]
name = "id"
type = "integer"

[[fields]]
name = "name"
type = "string"

[[fields]]
name = "signup_date"
type = "date"
formats = ["YYYY-MM-DD"]

[[fields]]
name = "amount_usd"
type = "float"
`)
	keys := []string{"id", "name", "signup_date", "amount_usd"}
	raws := []pipeline.RawRow{
		rawRow(keys, map[string]string{"id": "1", "name": "Amy", "signup_date": "2024-01-05", "amount_usd": "10.00"}),
		rawRow(keys, map[string]string{"id": "2", "name": "Ben", "signup_date": "2024-01-06", "amount_usd": "20.50"}),
	}
	b := batch.FromRaw(raws)
	accepted, rejected := New(s).ApplyBatch(b)

	require.Empty(t, rejected)
	require.Equal(t, 2, accepted.Len())

	id, ok := accepted.Rows[0].Get("id")
	require.True(t, ok)
	assert.Equal(t, int64(1), id)

	amount, ok := accepted.Rows[0].Get("amount_usd")
	require.True(t, ok)
	assert.Equal(t, 10.0, amount)

	date, ok := accepted.Rows[0].Get("signup_date")
	require.True(t, ok)
	assert.Equal(t, pipeline.Date{Year: 2024, Month: 1, Day: 5}, date)
}

// S2 — single row rejected, naming the failing column.
func TestCoerceRejectsInvalidDate(t *testing.T) {
	s := mustSchema(t, `
[[fields]]
name = "id"
type = "integer"

[[fields]]
name = "signup_date"
type = "date"
formats = ["YYYY-MM-DD"]
`)
	keys := []string{"id", "signup_date"}
	raws := []pipeline.RawRow{
		rawRow(keys, map[string]string{"id": "1", "signup_date": "2024-01-05"}),
		rawRow(keys, map[string]string{"id": "2", "signup_date": "not-a-date"}),
	}
	b := batch.FromRaw(raws)
	accepted, rejected := New(s).ApplyBatch(b)

	require.Equal(t, 1, accepted.Len())
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Err.Error(), "signup_date")
	assert.Equal(t, "2", rejected[0].Original.Values["id"])
}

// S4 — numeric artifact stripping.
func TestCoerceNumericArtifacts(t *testing.T) {
	s := mustSchema(t, `
[[fields]]
name = "amount"
type = "float"
`)
	keys := []string{"amount"}
	raws := []pipeline.RawRow{
		rawRow(keys, map[string]string{"amount": "(1,234.50)"}),
		rawRow(keys, map[string]string{"amount": "$1,000"}),
		rawRow(keys, map[string]string{"amount": "12.5"}),
	}
	b := batch.FromRaw(raws)
	accepted, rejected := New(s).ApplyBatch(b)

	require.Empty(t, rejected)
	require.Equal(t, 3, accepted.Len())
	v0, _ := accepted.Rows[0].Get("amount")
	v1, _ := accepted.Rows[1].Get("amount")
	v2, _ := accepted.Rows[2].Get("amount")
	assert.Equal(t, -1234.5, v0)
	assert.Equal(t, 1000.0, v1)
	assert.Equal(t, 12.5, v2)
}

// S6 — binary decoding.
func TestCoerceBinaryDecoding(t *testing.T) {
	s := mustSchema(t, `
[[fields]]
name = "blob"
type = "binary"
`)
	keys := []string{"blob"}
	raws := []pipeline.RawRow{
		rawRow(keys, map[string]string{"blob": "0x4869"}),
		rawRow(keys, map[string]string{"blob": "SGk="}),
		rawRow(keys, map[string]string{"blob": "not-hex-or-b64"}),
	}
	b := batch.FromRaw(raws)
	accepted, rejected := New(s).ApplyBatch(b)

	require.Equal(t, 2, accepted.Len())
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Err.Error(), "blob")

	want := []byte{0x48, 0x69}
	v0, _ := accepted.Rows[0].Get("blob")
	v1, _ := accepted.Rows[1].Get("blob")
	assert.Equal(t, want, v0)
	assert.Equal(t, want, v1)
}

func TestCoerceIntegerRejectsFraction(t *testing.T) {
	s := mustSchema(t, `
[[fields]]
name = "n"
type = "integer"
`)
	keys := []string{"n"}
	raws := []pipeline.RawRow{
		rawRow(keys, map[string]string{"n": "1.0"}),
		rawRow(keys, map[string]string{"n": "1.5"}),
	}
	b := batch.FromRaw(raws)
	accepted, rejected := New(s).ApplyBatch(b)

	require.Equal(t, 1, accepted.Len())
	require.Len(t, rejected, 1)
	v, _ := accepted.Rows[0].Get("n")
	assert.Equal(t, int64(1), v)
}

func TestCoerceIntegerRejectsOverflow(t *testing.T) {
	s := mustSchema(t, `
[[fields]]
name = "n"
type = "integer"
`)
	keys := []string{"n"}
	raws := []pipeline.RawRow{
		rawRow(keys, map[string]string{"n": "99999999999999999999999999999"}),
	}
	b := batch.FromRaw(raws)
	accepted, rejected := New(s).ApplyBatch(b)

	assert.Equal(t, 0, accepted.Len())
	require.Len(t, rejected, 1)
}

func TestCoerceDecimalHalfUpScale(t *testing.T) {
	two := 2
	s := &schema.Schema{
		Fields: []*schema.Field{{Name: "price", Type: schema.TypeDecimal, DecimalScale: &two}},
		Index:  map[string]*schema.Field{},
	}
	s.Index["price"] = s.Fields[0]

	keys := []string{"price"}
	raws := []pipeline.RawRow{
		rawRow(keys, map[string]string{"price": "10.005"}),
	}
	b := batch.FromRaw(raws)
	accepted, rejected := New(s).ApplyBatch(b)

	require.Empty(t, rejected)
	v, _ := accepted.Rows[0].Get("price")
	d := v.(decimal.Decimal)
	assert.True(t, d.Equal(decimal.RequireFromString("10.01")), "got %s", d.String())
}

func TestCoerceDatetimeLeapYearAndZoneStripping(t *testing.T) {
	s := mustSchema(t, `
[[fields]]
name = "ts"
type = "datetime"
`)
	keys := []string{"ts"}
	raws := []pipeline.RawRow{
		rawRow(keys, map[string]string{"ts": "2024-02-29T10:00:00Z"}),
		rawRow(keys, map[string]string{"ts": "2024-02-29T10:00:00+00:00"}),
		rawRow(keys, map[string]string{"ts": "2023-02-29T10:00:00Z"}), // not a leap year
	}
	b := batch.FromRaw(raws)
	accepted, rejected := New(s).ApplyBatch(b)

	require.Len(t, rejected, 1)
	require.Equal(t, 2, accepted.Len())

	v0, _ := accepted.Rows[0].Get("ts")
	v1, _ := accepted.Rows[1].Get("ts")
	t0 := v0.(time.Time)
	t1 := v1.(time.Time)
	assert.True(t, t0.Equal(t1))
	assert.Equal(t, time.UTC, t0.Location())
}

func TestCoerceIsIdempotentOnTypedInput(t *testing.T) {
	s := mustSchema(t, `
[[fields]]
name = "id"
type = "integer"
`)
	row := pipeline.NewRow(1)
	row.Set("id", int64(42))
	b := &batch.Batch{
		Rows:      []pipeline.Row{row},
		Originals: []pipeline.RawRow{rawRow([]string{"id"}, map[string]string{"id": "42"})},
	}
	accepted, rejected := New(s).ApplyBatch(b)

	require.Empty(t, rejected)
	v, _ := accepted.Rows[0].Get("id")
	assert.Equal(t, int64(42), v, "already-typed cell is left untouched, not re-parsed")
}

func TestCoerceBooleanCustomTokens(t *testing.T) {
	s := &schema.Schema{
		Fields: []*schema.Field{{Name: "active", Type: schema.TypeBoolean, BoolTrue: []string{"si"}, BoolFalse: []string{"non"}}},
		Index:  map[string]*schema.Field{},
	}
	s.Index["active"] = s.Fields[0]

	keys := []string{"active"}
	raws := []pipeline.RawRow{
		rawRow(keys, map[string]string{"active": "Si"}),
		rawRow(keys, map[string]string{"active": "NON"}),
		rawRow(keys, map[string]string{"active": "maybe"}),
	}
	b := batch.FromRaw(raws)
	accepted, rejected := New(s).ApplyBatch(b)

	require.Equal(t, 2, accepted.Len())
	require.Len(t, rejected, 1)
	v0, _ := accepted.Rows[0].Get("active")
	v1, _ := accepted.Rows[1].Get("active")
	assert.Equal(t, true, v0)
	assert.Equal(t, false, v1)
}

func TestCoerceNullTokenBecomesNil(t *testing.T) {
	s := mustSchema(t, `
[[fields]]
name = "id"
type = "integer"

[x-csv.nulls]
global = ["NA"]
`)
	keys := []string{"id"}
	raws := []pipeline.RawRow{
		rawRow(keys, map[string]string{"id": "NA"}),
	}
	b := batch.FromRaw(raws)
	accepted, rejected := New(s).ApplyBatch(b)

	require.Empty(t, rejected)
	v, ok := accepted.Rows[0].Get("id")
	require.True(t, ok)
	assert.Nil(t, v)
}
