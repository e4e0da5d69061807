package schema

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"ingestkit/internal/ingesterr"
)

// LoadFile reads a schema document from path, decoding it as TOML or
// JSON depending on the file extension, and returns the parsed Schema.
// This is the generic-mapping-then-normalize split spec §4.1 describes:
// decoding is format-specific, normalization (Parse) is not.
func LoadFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ingesterr.NewConfigError("opening schema file", err)
	}
	defer f.Close()

	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return LoadJSON(f)
	}
	return LoadTOML(f)
}

// LoadTOML decodes r as a TOML schema document, following the
// teacher's own decode-then-convert parser shape
// (internal/parser/toml/parser.go's Parser.Parse).
func LoadTOML(r io.Reader) (*Schema, error) {
	var doc map[string]any
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, ingesterr.NewConfigError("decoding TOML schema", err)
	}
	s, err := Parse(doc)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// LoadRawDocument decodes a schema file into its generic mapping form
// without normalizing it into a Schema, for CLI callers that need to
// read an extension block (e.g. "x-fwf") LoadFile's normalized Schema
// does not carry.
func LoadRawDocument(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ingesterr.NewConfigError("opening schema file", err)
	}
	defer f.Close()

	var doc map[string]any
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		dec := json.NewDecoder(f)
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, ingesterr.NewConfigError("decoding JSON schema", err)
		}
		normalizeJSONNumbers(doc)
		return doc, nil
	}
	if _, err := toml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, ingesterr.NewConfigError("decoding TOML schema", err)
	}
	return doc, nil
}

// LoadJSON decodes r as a JSON schema document (supporting both the
// "fields" list form and the JSON-Schema "properties" form).
func LoadJSON(r io.Reader) (*Schema, error) {
	var doc map[string]any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, ingesterr.NewConfigError("decoding JSON schema", err)
	}
	normalizeJSONNumbers(doc)
	return Parse(doc)
}

// normalizeJSONNumbers converts json.Number leaves produced by
// UseNumber() into int/float64 so downstream field parsing (which
// expects plain Go scalars) does not need to special-case
// encoding/json's number representation.
func normalizeJSONNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, vv := range t {
			t[k] = normalizeJSONNumbers(vv)
		}
		return t
	case []any:
		for i, vv := range t {
			t[i] = normalizeJSONNumbers(vv)
		}
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
		f, _ := t.Float64()
		return f
	default:
		return v
	}
}
