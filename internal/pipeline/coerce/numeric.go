package coerce

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// stripNumericArtifacts removes the cosmetic formatting a spreadsheet or
// accounting export tends to leave on a numeric cell: thousands
// separators and currency symbols are deleted outright, and a value
// wrapped in parentheses is translated to its negative. Grounded on
// _strip_numeric_artifacts in the original implementation's
// preprocessors/type_coercion.py.
func stripNumericArtifacts(s string) string {
	s = strings.TrimSpace(s)
	negative := false
	if len(s) >= 2 && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer(",", "", "$", "", "€", "", "£", "", " ", "").Replace(s)
	if negative && s != "" && s[0] != '-' {
		s = "-" + s
	}
	return s
}

// parseFloat strips numeric artifacts and parses the remainder as a
// float64, rejecting non-finite results — a literal "NaN" or "Inf" in
// the source is not a valid number field value.
func parseFloat(raw string) (float64, bool) {
	s := stripNumericArtifacts(raw)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseInteger accepts an integer literal, or a decimal literal with an
// all-zero fractional part ("1.0"), truncating to int64. "1.5" is
// invalid. Values outside the signed 64-bit range are invalid.
func parseInteger(raw string) (int64, bool) {
	if n, err := strconv.ParseInt(stripNumericArtifacts(raw), 10, 64); err == nil {
		return n, true
	}
	f, ok := parseFloat(raw)
	if !ok {
		return 0, false
	}
	if math.Trunc(f) != f {
		return 0, false
	}
	// float64(math.MaxInt64) rounds up to 2^63, which is out of range.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// parseDecimal strips numeric artifacts and parses the remainder as an
// arbitrary-precision decimal, quantizing to scale (half away from
// zero, matching the original implementation's
// ROUND_HALF_UP) when the field declares one.
func parseDecimal(raw string, scale *int) (decimal.Decimal, bool) {
	s := stripNumericArtifacts(raw)
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if scale != nil {
		d = d.Round(int32(*scale))
	}
	return d, true
}
