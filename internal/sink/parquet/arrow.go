package parquet

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/shopspring/decimal"

	"ingestkit/internal/pipeline"
	"ingestkit/internal/schema"
)

// defaultDecimalPrecision and defaultDecimalScale apply to a decimal
// field with no declared scale. Parquet's decimal logical type, unlike
// the arbitrary-precision Decimal the coercion stage produces, requires
// a fixed precision/scale per column; a column with no declared scale
// still needs one to be written at all.
const (
	defaultDecimalPrecision = 38
	defaultDecimalScale     = 9
)

// arrowFieldFor builds the arrow.Field a declared schema field
// materializes as. Every field is nullable: a null cell is legal for
// any canonical type.
func arrowFieldFor(f *schema.Field) arrow.Field {
	switch f.Type {
	case schema.TypeInteger:
		return arrow.Field{Name: f.Name, Type: arrow.PrimitiveTypes.Int64, Nullable: true}
	case schema.TypeNumber:
		return arrow.Field{Name: f.Name, Type: arrow.PrimitiveTypes.Float64, Nullable: true}
	case schema.TypeDecimal:
		precision := defaultDecimalPrecision
		if f.DecimalPrecision != nil {
			precision = *f.DecimalPrecision
		}
		scale := defaultDecimalScale
		if f.DecimalScale != nil {
			scale = *f.DecimalScale
		}
		return arrow.Field{Name: f.Name, Type: &arrow.Decimal128Type{Precision: int32(precision), Scale: int32(scale)}, Nullable: true}
	case schema.TypeBoolean:
		return arrow.Field{Name: f.Name, Type: arrow.FixedWidthTypes.Boolean, Nullable: true}
	case schema.TypeDate:
		return arrow.Field{Name: f.Name, Type: arrow.FixedWidthTypes.Date32, Nullable: true}
	case schema.TypeDatetime:
		return arrow.Field{Name: f.Name, Type: &arrow.TimestampType{Unit: arrow.Microsecond}, Nullable: true}
	case schema.TypeBinary:
		return arrow.Field{Name: f.Name, Type: arrow.BinaryTypes.Binary, Nullable: true}
	default: // TypeString, TypeUntyped, and anything unrecognized pass through as text
		return arrow.Field{Name: f.Name, Type: arrow.BinaryTypes.String, Nullable: true}
	}
}

// decimalScaleFor returns the scale a TypeDecimal field's column was
// built with, matching arrowFieldFor's default.
func decimalScaleFor(f *schema.Field) int32 {
	if f.DecimalScale != nil {
		return int32(*f.DecimalScale)
	}
	return defaultDecimalScale
}

// appendValue writes one cell into the column builder at idx,
// dispatching on the Go runtime value the coercion stage (or, in
// secondary-validation mode, the raw source) produced.
func appendValue(b *array.RecordBuilder, idx int, val any, field *schema.Field) error {
	fb := b.Field(idx)
	if val == nil {
		fb.AppendNull()
		return nil
	}

	switch v := val.(type) {
	case int64:
		bld, ok := fb.(*array.Int64Builder)
		if !ok {
			return fmt.Errorf("column %d: expected int64 builder", idx)
		}
		bld.Append(v)
	case float64:
		bld, ok := fb.(*array.Float64Builder)
		if !ok {
			return fmt.Errorf("column %d: expected float64 builder", idx)
		}
		bld.Append(v)
	case decimal.Decimal:
		bld, ok := fb.(*array.Decimal128Builder)
		if !ok {
			return fmt.Errorf("column %d: expected decimal128 builder", idx)
		}
		scale := int32(defaultDecimalScale)
		if field != nil {
			scale = decimalScaleFor(field)
		}
		num, err := decimalToArrow(v, scale)
		if err != nil {
			return err
		}
		bld.Append(num)
	case bool:
		bld, ok := fb.(*array.BooleanBuilder)
		if !ok {
			return fmt.Errorf("column %d: expected boolean builder", idx)
		}
		bld.Append(v)
	case pipeline.Date:
		bld, ok := fb.(*array.Date32Builder)
		if !ok {
			return fmt.Errorf("column %d: expected date32 builder", idx)
		}
		bld.Append(arrow.Date32FromTime(v.ToTime()))
	case []byte:
		bld, ok := fb.(*array.BinaryBuilder)
		if !ok {
			return fmt.Errorf("column %d: expected binary builder", idx)
		}
		bld.Append(v)
	case string:
		bld, ok := fb.(*array.StringBuilder)
		if !ok {
			return fmt.Errorf("column %d: expected string builder", idx)
		}
		bld.Append(v)
	default:
		// Datetime values are matched here by their UnixMicro method
		// (as time.Time has) rather than by a type case above.
		if t, ok := asTimestamp(val); ok {
			bld, ok := fb.(*array.TimestampBuilder)
			if !ok {
				return fmt.Errorf("column %d: expected timestamp builder", idx)
			}
			bld.Append(t)
			return nil
		}
		return fmt.Errorf("column %d: unsupported value type %T", idx, val)
	}
	return nil
}

func asTimestamp(val any) (arrow.Timestamp, bool) {
	t, ok := val.(interface{ UnixMicro() int64 })
	if !ok {
		return 0, false
	}
	return arrow.Timestamp(t.UnixMicro()), true
}

// decimalToArrow converts a shopspring decimal to a fixed-scale
// decimal128, rendering through StringFixed rather than the
// coefficient/exponent pair so the conversion does not depend on how
// the library chose to normalize the decimal's internal exponent.
func decimalToArrow(d decimal.Decimal, scale int32) (decimal128.Num, error) {
	fixed := d.StringFixed(scale)
	neg := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")
	fixed = strings.Replace(fixed, ".", "", 1)
	if fixed == "" {
		fixed = "0"
	}
	bi, ok := new(big.Int).SetString(fixed, 10)
	if !ok {
		return decimal128.Num{}, fmt.Errorf("cannot represent %s at scale %d as decimal128", d.String(), scale)
	}
	if neg {
		bi.Neg(bi)
	}
	return decimal128.FromBigInt(bi)
}
