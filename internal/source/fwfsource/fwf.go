// Package fwfsource implements C2 for fixed-width text files. Each
// line is sliced into fields by declared character (rune) offsets rather than
// parsed, so coercion (C5) — not this adapter — owns type validation.
// Grounded on parse_fwf_row in the original implementation's
// schema/fwf_extensions.py, with the per-field integer/date/boolean
// pre-validation dropped: it duplicated work the coercion stage
// already does, and kept here would let FWF fields fail in a way
// CSV/Excel fields of the same declared type cannot.
package fwfsource

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"ingestkit/internal/ingesterr"
	"ingestkit/internal/pipeline"
	"ingestkit/internal/source"
)

// FieldSpec describes one fixed-width column: a 1-based inclusive
// start position, plus either Length or End (never both).
type FieldSpec struct {
	Name   string
	Start  int
	Length int
	End    int
	RStrip bool
	LStrip bool
}

// Spec is the fixed-width layout for one file, equivalent to the
// schema's x-fwf extension block.
type Spec struct {
	Encoding string
	Fields   []FieldSpec
}

// span returns the field's 0-based [start, start+length) character
// (rune) range.
func (f FieldSpec) span() (start, length int, err error) {
	start = f.Start - 1
	switch {
	case f.Length > 0 && f.End > 0:
		return 0, 0, ingesterr.NewConfigError("field "+f.Name+" declares both length and end", nil)
	case f.Length > 0:
		return start, f.Length, nil
	case f.End > 0:
		length := f.End - f.Start + 1
		if length < 1 {
			return 0, 0, ingesterr.NewConfigError("field "+f.Name+" has end before start", nil)
		}
		return start, length, nil
	default:
		return 0, 0, ingesterr.NewConfigError("field "+f.Name+" must declare length or end", nil)
	}
}

// Adapter reads a single fixed-width file as one logical table.
type Adapter struct {
	path string
	spec Spec
}

// New builds a fixed-width adapter for path using spec.
func New(path string, spec Spec) *Adapter {
	return &Adapter{path: path, spec: spec}
}

func (a *Adapter) Tables(ctx context.Context) ([]source.Table, error) {
	name := strings.TrimSuffix(filepath.Base(a.path), filepath.Ext(a.path))
	return []source.Table{{
		Name: name,
		Open: func(ctx context.Context) (source.RowReader, error) {
			f, err := os.Open(a.path)
			if err != nil {
				return nil, ingesterr.NewSourceError("opening fwf file "+a.path, err)
			}
			return &reader{file: f, scanner: bufio.NewScanner(f), spec: a.spec}, nil
		},
	}}, nil
}

func (a *Adapter) Close() error { return nil }

type reader struct {
	file    *os.File
	scanner *bufio.Scanner
	spec    Spec
	lastRow pipeline.RawRow
	hasLast bool
}

func (r *reader) Next(ctx context.Context) (pipeline.RawRow, bool, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		row, err := parseLine(line, r.spec)
		if err != nil {
			return pipeline.RawRow{}, false, err
		}
		blank := true
		for _, v := range row.Values {
			if strings.TrimSpace(v) != "" {
				blank = false
				break
			}
		}
		if blank {
			continue
		}
		if r.hasLast && sameValues(r.lastRow, row) {
			continue
		}
		r.lastRow = row
		r.hasLast = true
		return row, true, nil
	}
	if err := r.scanner.Err(); err != nil {
		return pipeline.RawRow{}, false, ingesterr.NewSourceError("scanning fwf file", err)
	}
	return pipeline.RawRow{}, false, nil
}

// sameValues reports whether two rows hold identical cell values for
// every key, used to suppress a row that exactly repeats the
// previously yielded one.
func sameValues(a, b pipeline.RawRow) bool {
	if len(a.Keys) != len(b.Keys) {
		return false
	}
	for _, k := range a.Keys {
		av, _ := a.Get(k)
		bv, ok := b.Get(k)
		if !ok || av != bv {
			return false
		}
	}
	return true
}

func (r *reader) Close() error { return r.file.Close() }

func parseLine(line string, spec Spec) (pipeline.RawRow, error) {
	keys := make([]string, 0, len(spec.Fields))
	values := make(map[string]string, len(spec.Fields))
	runes := []rune(line)

	for _, f := range spec.Fields {
		start, length, err := f.span()
		if err != nil {
			return pipeline.RawRow{}, err
		}
		var cell string
		if start < len(runes) {
			end := start + length
			if end > len(runes) {
				end = len(runes)
			}
			cell = string(runes[start:end])
		}
		if f.RStrip {
			cell = strings.TrimRight(cell, " \t")
		}
		if f.LStrip {
			cell = strings.TrimLeft(cell, " \t")
		}
		keys = append(keys, f.Name)
		values[f.Name] = cell
	}
	return pipeline.NewRawRow(keys, values), nil
}
