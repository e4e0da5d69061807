package fwfsource

import (
	"fmt"
	"strconv"

	"ingestkit/internal/ingesterr"
)

// LoadSpec builds a Spec from the generic x-fwf extension block of a
// decoded schema document (doc["x-fwf"]). Grounded on the fwf_spec
// dict parse_fwf_row expects in the original implementation's
// schema/fwf_extensions.py.
func LoadSpec(raw map[string]any) (Spec, error) {
	spec := Spec{Encoding: "utf-8"}
	if enc, ok := raw["encoding"].(string); ok && enc != "" {
		spec.Encoding = enc
	}

	fieldsRaw, ok := raw["fields"].([]any)
	if !ok {
		return Spec{}, ingesterr.NewConfigError("x-fwf.fields must be a list", nil)
	}
	for _, item := range fieldsRaw {
		m, ok := item.(map[string]any)
		if !ok {
			return Spec{}, ingesterr.NewConfigError("each x-fwf field must be a mapping", nil)
		}
		name, _ := m["name"].(string)
		if name == "" {
			return Spec{}, ingesterr.NewConfigError("x-fwf field missing name", nil)
		}
		start, ok := intVal(m["start"])
		if !ok {
			return Spec{}, ingesterr.NewConfigError(fmt.Sprintf("field %q missing start", name), nil)
		}
		fs := FieldSpec{Name: name, Start: start, RStrip: true}
		if l, ok := intVal(m["length"]); ok {
			fs.Length = l
		}
		if e, ok := intVal(m["end"]); ok {
			fs.End = e
		}
		if v, ok := m["rstrip"].(bool); ok {
			fs.RStrip = v
		}
		if v, ok := m["lstrip"].(bool); ok {
			fs.LStrip = v
		}
		spec.Fields = append(spec.Fields, fs)
	}
	return spec, nil
}

func intVal(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
