package schema

import (
	"fmt"
	"strconv"
	"strings"

	"ingestkit/internal/ingesterr"
)

// formatKeys lists every key under which a field's date/datetime format
// list may be supplied, per spec §4.1.
var formatKeys = []string{"format", "formats", "patterns", "date_format", "date_formats"}

// Parse normalizes a generic nested mapping (already decoded from TOML
// or JSON by a caller) into a *Schema. It implements the normalization
// rules of spec §4.1: float/double collapse to number, timestamp
// collapses to datetime, format lists may be a string or list under any
// recognized key, and unknown types become "untyped".
func Parse(doc map[string]any) (*Schema, error) {
	s := &Schema{
		Index:    make(map[string]*Field),
		Required: make(map[string]bool),
	}

	fieldDocs, err := extractFieldDocs(doc)
	if err != nil {
		return nil, ingesterr.NewConfigError("parsing fields", err)
	}
	for _, fd := range fieldDocs {
		f, err := parseField(fd)
		if err != nil {
			return nil, ingesterr.NewConfigError(fmt.Sprintf("field %q", fd.name), err)
		}
		if _, dup := s.Index[f.Name]; dup {
			return nil, ingesterr.NewConfigError(fmt.Sprintf("duplicate field %q", f.Name), nil)
		}
		s.Fields = append(s.Fields, f)
		s.Index[f.Name] = f
	}

	for _, name := range stringList(doc["required"]) {
		s.Required[name] = true
	}

	xcsv, _ := doc["x-csv"].(map[string]any)
	if xcsv != nil {
		if dedupe, ok := xcsv["dedupe"].(map[string]any); ok {
			s.DedupKeys = stringList(dedupe["keys"])
		}
		if nulls, ok := xcsv["nulls"].(map[string]any); ok {
			s.NullTokensGlobal = stringList(nulls["global"])
			s.AllowRequiredNulls = true
			if perCol, ok := nulls["perColumn"].(map[string]any); ok {
				for name, v := range perCol {
					if f, ok := s.Index[name]; ok {
						f.NullTokens = append(f.NullTokens, stringList(v)...)
					}
				}
			}
		}
		if header, ok := xcsv["header"].(map[string]any); ok {
			switch m := fmt.Sprint(header["mode"]); m {
			case string(HeaderPresent), string(HeaderAbsent), string(HeaderAuto):
				s.HeaderMode = HeaderMode(m)
			}
			s.HeaderColumns = stringList(header["columns"])
		}
	}
	if s.HeaderMode == "" {
		s.HeaderMode = HeaderAuto
	}

	include, err := extractSQLInclude(doc)
	if err != nil {
		return nil, ingesterr.NewConfigError("parsing x-sql include", err)
	}
	s.SQLInclude = include

	return s, nil
}

type fieldDoc struct {
	name string
	raw  map[string]any
}

// extractFieldDocs supports both the "fields" list form and the
// JSON-Schema-style "properties" mapping form, per spec §6.
func extractFieldDocs(doc map[string]any) ([]fieldDoc, error) {
	if raw, ok := doc["fields"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("fields must be a list")
		}
		out := make([]fieldDoc, 0, len(list))
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("each field must be a mapping")
			}
			name, _ := m["name"].(string)
			if name == "" {
				return nil, fmt.Errorf("field missing name")
			}
			out = append(out, fieldDoc{name: name, raw: m})
		}
		return out, nil
	}
	if raw, ok := doc["properties"]; ok {
		props, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("properties must be a mapping")
		}
		// Deterministic order is not guaranteed for a Go map; callers
		// that care about ordering should use the "fields" form.
		out := make([]fieldDoc, 0, len(props))
		for name, v := range props {
			m, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("property %q must be a mapping", name)
			}
			out = append(out, fieldDoc{name: name, raw: m})
		}
		return out, nil
	}
	return nil, nil
}

func parseField(fd fieldDoc) (*Field, error) {
	f := &Field{Name: fd.name}

	rawType := strings.ToLower(strings.TrimSpace(fmt.Sprint(fd.raw["type"])))
	fmtHint := strings.ToLower(strings.TrimSpace(fmt.Sprint(fd.raw["format"])))

	switch {
	case rawType == "string" && fmtHint == "date":
		f.Type = TypeDate
	case rawType == "string" && (fmtHint == "datetime" || fmtHint == "date-time" || fmtHint == "timestamp"):
		f.Type = TypeDatetime
	case rawType == "float" || rawType == "double":
		f.Type = TypeNumber
	case rawType == "timestamp":
		f.Type = TypeDatetime
	case rawType == "integer" || rawType == "number" || rawType == "boolean" ||
		rawType == "decimal" || rawType == "string" || rawType == "binary" ||
		rawType == "date" || rawType == "datetime":
		f.Type = Type(rawType)
	default:
		f.Type = TypeUntyped
	}

	if f.Type == TypeDate || f.Type == TypeDatetime {
		userFormats := extractUserFormats(fd.raw)
		f.Formats = ParseFormats(userFormats)
	}

	if f.Type == TypeDecimal {
		if scale, ok := intField(fd.raw["scale"]); ok {
			f.DecimalScale = &scale
		}
		if precision, ok := intField(fd.raw["precision"]); ok {
			f.DecimalPrecision = &precision
		}
	}

	if f.Type == TypeBoolean {
		f.BoolTrue = lowerAll(stringList(fd.raw["true"]))
		f.BoolFalse = lowerAll(stringList(fd.raw["false"]))
	}

	f.NullTokens = stringList(fd.raw["nulls"])

	return f, nil
}

func extractUserFormats(raw map[string]any) []string {
	var out []string
	for _, k := range formatKeys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		out = append(out, stringList(v)...)
	}
	return out
}

func extractSQLInclude(doc map[string]any) ([]IncludePattern, error) {
	var patterns []IncludePattern
	xsql, _ := doc["x-sql"].(map[string]any)
	if xsql != nil {
		for _, raw := range stringList(xsql["include"]) {
			patterns = append(patterns, parseIncludeString(raw))
		}
		if tables, ok := xsql["tables"].([]any); ok {
			for _, t := range tables {
				m, ok := t.(map[string]any)
				if !ok {
					continue
				}
				sel, _ := m["select"].(map[string]any)
				if sel == nil {
					sel = m
				}
				if pat, ok := sel["pattern"].(string); ok && pat != "" {
					patterns = append(patterns, parseIncludeString(pat))
					continue
				}
				schemaName, _ := sel["schema"].(string)
				tableName, _ := sel["name"].(string)
				patterns = append(patterns, IncludePattern{
					Schema: schemaName,
					Table:  tableName,
				})
			}
		}
	}
	for _, raw := range stringList(doc["include"]) {
		patterns = append(patterns, parseIncludeString(raw))
	}
	return patterns, nil
}

// parseIncludeString parses "schema.table", "schema.*", "*.*", or a
// bare "table" into an IncludePattern.
func parseIncludeString(raw string) IncludePattern {
	raw = strings.TrimSpace(raw)
	if idx := strings.IndexByte(raw, '.'); idx >= 0 {
		return IncludePattern{Schema: raw[:idx], Table: raw[idx+1:]}
	}
	return IncludePattern{Table: raw}
}

func stringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return nil
	}
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func intField(v any) (int, bool) {
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
