package coerce

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// defaultTrueTokens and defaultFalseTokens are the built-in boolean
// token sets, extended per-field by schema.Field.BoolTrue/BoolFalse.
// Grounded on _TRUE/_FALSE in the original implementation's
// preprocessors/type_coercion.py.
var (
	defaultTrueTokens  = []string{"true", "t", "yes", "y", "1"}
	defaultFalseTokens = []string{"false", "f", "no", "n", "0"}
)

func tokenSet(defaults, extra []string) map[string]struct{} {
	set := make(map[string]struct{}, len(defaults)+len(extra))
	for _, t := range defaults {
		set[t] = struct{}{}
	}
	for _, t := range extra {
		set[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return set
}

// parseBool folds raw to lower case and trims it before matching against
// the true/false token sets. Ambiguous or unrecognized tokens are
// invalid rather than defaulting to false.
func parseBool(raw string, trueTokens, falseTokens map[string]struct{}) (bool, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := trueTokens[v]; ok {
		return true, true
	}
	if _, ok := falseTokens[v]; ok {
		return false, true
	}
	return false, false
}

// parseBinary accepts a hex literal (optionally "0x"-prefixed) or,
// failing that, standard base64. Grounded on _coerce_binary in the
// original implementation's preprocessors/type_coercion.py.
func parseBinary(raw string) ([]byte, bool) {
	s := strings.TrimSpace(raw)
	hexBody := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if hexBody != "" && isHex(hexBody) {
		b, err := hex.DecodeString(hexBody)
		if err == nil {
			return b, true
		}
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return b, true
	}
	return nil, false
}

func isHex(s string) bool {
	if len(s)%2 != 0 {
		return false
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}
