package parquet

import (
	"fmt"
	"regexp"
	"strings"

	"ingestkit/internal/ingesterr"
	"ingestkit/internal/pipeline"
	"ingestkit/internal/schema"
)

// Regex screens mirroring the original implementation's
// utils/row_validation.py, used only when this sink runs without an
// upstream coercion stage (Config.SecondaryValidate) and therefore
// sees raw string cells instead of already-typed values.
var (
	rawIntegerRe = regexp.MustCompile(`^[+-]?\d+$`)
	rawNumberRe  = regexp.MustCompile(`^[+-]?(?:\d+\.\d*|\d*\.\d+|\d+)(?:[eE][+-]?\d+)?$`)
	rawISODateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	rawISODTRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T.+$`)
	rawHexRe     = regexp.MustCompile(`^(?:0x)?[0-9a-fA-F]+$`)
	rawBase64Re  = regexp.MustCompile(`^(?:[A-Za-z0-9+/]{4})*(?:[A-Za-z0-9+/]{2}==|[A-Za-z0-9+/]{3}=)?$`)
	decimalFrac  = regexp.MustCompile(`\.(\d+)`)
)

// validateRaw screens a row's cells against the declared schema's
// types, without performing the full coercion the pipeline's coerce
// stage would. It is a quick diagnostic filter, not a replacement for
// coercion: it accepts anything a loose regex or token-set membership
// check permits. That set differs from what would coerce in both
// directions: it rejects some values coercion accepts (currency
// symbols, thousands separators, "1.0" for an integer, non-ISO dates)
// and accepts some coercion rejects (an ISO date such as 2023-02-30).
func validateRaw(row pipeline.Row, sch *schema.Schema) error {
	if sch == nil {
		return nil
	}
	for _, field := range sch.Fields {
		raw, present := row.Get(field.Name)
		if !present {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			continue
		}
		if err := validateRawField(field, trimmed); err != nil {
			return ingesterr.NewValidationError(field.Name, err.Error())
		}
	}
	return nil
}

func validateRawField(field *schema.Field, value string) error {
	switch field.Type {
	case schema.TypeInteger:
		if !rawIntegerRe.MatchString(value) {
			return fmt.Errorf("expected integer, got %q", value)
		}
	case schema.TypeNumber:
		if !rawNumberRe.MatchString(value) {
			return fmt.Errorf("expected number, got %q", value)
		}
	case schema.TypeDecimal:
		if !rawNumberRe.MatchString(value) {
			return fmt.Errorf("expected decimal, got %q", value)
		}
		if field.DecimalScale != nil {
			if m := decimalFrac.FindStringSubmatch(value); m != nil && len(m[1]) > *field.DecimalScale {
				return fmt.Errorf("expected decimal scale <= %d, got scale %d", *field.DecimalScale, len(m[1]))
			}
		}
	case schema.TypeDate:
		if !rawISODateRe.MatchString(value) {
			return fmt.Errorf("expected date, got %q", value)
		}
	case schema.TypeDatetime:
		if !rawISODTRe.MatchString(value) {
			return fmt.Errorf("expected datetime, got %q", value)
		}
	case schema.TypeBoolean:
		if !rawBooleanAllowed(field, value) {
			return fmt.Errorf("expected boolean, got %q", value)
		}
	case schema.TypeBinary:
		if !rawHexRe.MatchString(value) && !rawBase64Re.MatchString(value) {
			return fmt.Errorf("expected binary (hex/base64), got %q", value)
		}
	}
	return nil
}

func rawBooleanAllowed(field *schema.Field, value string) bool {
	lower := strings.ToLower(value)
	defaults := []string{"true", "t", "yes", "y", "1", "false", "f", "no", "n", "0"}
	for _, tok := range defaults {
		if lower == tok {
			return true
		}
	}
	for _, tok := range append(field.BoolTrue, field.BoolFalse...) {
		if strings.ToLower(tok) == lower {
			return true
		}
	}
	return false
}
