// Package excelsource implements C2 for Excel workbooks via
// excelize's streaming row reader, so a large sheet does not need to
// be held in memory as pandas.read_excel does in the original
// implementation's inputs/excel_input.py. Header deduplication
// mirrors that file's own _dedupe_column_names, extracted to the
// shared colnames package.
package excelsource

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"ingestkit/internal/ingesterr"
	"ingestkit/internal/pipeline"
	"ingestkit/internal/schema"
	"ingestkit/internal/source"
	"ingestkit/internal/source/colnames"
)

// Adapter reads one sheet of an Excel workbook as one logical table.
type Adapter struct {
	path   string
	sheet  string
	schema *schema.Schema
}

// New builds an Excel adapter for path. sheet selects a sheet name; ""
// means the workbook's first sheet.
func New(path, sheet string, s *schema.Schema) *Adapter {
	return &Adapter{path: path, sheet: sheet, schema: s}
}

func (a *Adapter) Close() error { return nil }

func (a *Adapter) Tables(ctx context.Context) ([]source.Table, error) {
	f, err := excelize.OpenFile(a.path)
	if err != nil {
		return nil, ingesterr.NewSourceError("opening excel file "+a.path, err)
	}
	sheet := a.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		f.Close()
		return nil, ingesterr.NewSourceError("excel file has no sheets", nil)
	}

	name := strings.TrimSuffix(filepath.Base(a.path), filepath.Ext(a.path))
	return []source.Table{{
		Name: name,
		Open: func(ctx context.Context) (source.RowReader, error) {
			return openReader(f, sheet, a.schema)
		},
	}}, nil
}

type reader struct {
	file    *excelize.File
	rows    *excelize.Rows
	header  []string
	lastRow []string
	hasLast bool
}

func openReader(f *excelize.File, sheet string, s *schema.Schema) (*reader, error) {
	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, ingesterr.NewSourceError("reading excel sheet "+sheet, err)
	}

	mode := schema.HeaderAuto
	if s != nil {
		mode = s.HeaderMode
	}

	var header []string
	if mode == schema.HeaderAbsent {
		if s != nil {
			header = s.HeaderColumns
		}
	} else if rows.Next() {
		cells, err := rows.Columns()
		if err != nil {
			return nil, ingesterr.NewSourceError("reading excel header row", err)
		}
		header = colnames.Dedupe(foldHeader(normalizeHeader(cells)))
	}

	return &reader{file: f, rows: rows, header: header}, nil
}

// normalizeHeader stringifies every header cell, synthesizing
// "col_N" for a blank cell so no column is silently dropped.
func normalizeHeader(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		if strings.TrimSpace(c) == "" {
			out[i] = "col_" + strconv.Itoa(i+1)
			continue
		}
		out[i] = c
	}
	return out
}

// foldHeader PG-safe folds every header cell so raw text (mixed case,
// punctuation, embedded whitespace) never reaches a Parquet column
// name unchanged.
func foldHeader(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = colnames.PGSafeFold(c)
	}
	return out
}

func (r *reader) Next(ctx context.Context) (pipeline.RawRow, bool, error) {
	for r.rows.Next() {
		cells, err := r.rows.Columns()
		if err != nil {
			return pipeline.RawRow{}, false, ingesterr.NewSourceError("reading excel row", err)
		}
		if blank(cells) {
			continue
		}
		if r.hasLast && sameRow(r.lastRow, cells) {
			continue
		}
		r.lastRow = append([]string(nil), cells...)
		r.hasLast = true
		return toRawRow(r.header, cells), true, nil
	}
	return pipeline.RawRow{}, false, nil
}

// sameRow reports whether two cell slices hold identical values in the
// same order, used to suppress a row that exactly repeats the
// previously yielded one.
func sameRow(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (r *reader) Close() error {
	r.rows.Close()
	return r.file.Close()
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func toRawRow(header []string, cells []string) pipeline.RawRow {
	n := len(cells)
	if len(header) < n {
		n = len(header)
	}
	keys := make([]string, n)
	values := make(map[string]string, n)
	for i := 0; i < n; i++ {
		keys[i] = header[i]
		values[header[i]] = cells[i]
	}
	return pipeline.NewRawRow(keys, values)
}
