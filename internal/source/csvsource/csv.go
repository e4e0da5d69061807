// Package csvsource implements C2 for delimited text files: header
// handling, a small encoding-fallback cascade, and blank-row
// suppression. Grounded on CSVInput in the original implementation's
// inputs/csv_input.py, with detect_header_and_dialect's job split
// between open (this file) and the schema's declared HeaderMode. The
// "auto" mode does not inspect the data: like "present", it reads the
// first record as the header.
package csvsource

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"ingestkit/internal/ingesterr"
	"ingestkit/internal/pipeline"
	"ingestkit/internal/schema"
	"ingestkit/internal/source"
	"ingestkit/internal/source/colnames"
)

// Adapter reads a single delimited text file as one logical table
// named after the file's base name (without extension).
type Adapter struct {
	path      string
	schema    *schema.Schema
	delimiter rune
}

// New builds a CSV adapter for path. delimiter defaults to ',' when 0.
func New(path string, s *schema.Schema, delimiter rune) *Adapter {
	if delimiter == 0 {
		delimiter = ','
	}
	return &Adapter{path: path, schema: s, delimiter: delimiter}
}

func (a *Adapter) Tables(ctx context.Context) ([]source.Table, error) {
	name := tableName(a.path)
	return []source.Table{{
		Name: name,
		Open: func(ctx context.Context) (source.RowReader, error) {
			return open(a.path, a.schema, a.delimiter)
		},
	}}, nil
}

func (a *Adapter) Close() error { return nil }

func tableName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// decodeFile mirrors open_text_auto's try-in-order cascade,
// collapsed to the two practical cases a byte-scan can distinguish in
// Go without attempting every legacy code page: valid UTF-8 (optionally
// BOM-prefixed) or Windows-1252, which is a superset of Latin-1 for the
// bytes most accounting exports actually use.
func decodeFile(data []byte) string {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

type reader struct {
	file    io.Closer
	csv     *csv.Reader
	header  []string
	lastRec []string
	hasLast bool
}

func open(path string, s *schema.Schema, delimiter rune) (*reader, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, ingesterr.NewSourceError("reading csv file "+path, err)
	}
	text := decodeFile(data)

	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var header []string
	mode := schema.HeaderAuto
	if s != nil {
		mode = s.HeaderMode
	}
	if mode == schema.HeaderAbsent {
		if s != nil {
			header = s.HeaderColumns
		}
	} else {
		rec, err := cr.Read()
		if err == io.EOF {
			return &reader{csv: cr, header: nil}, nil
		}
		if err != nil {
			return nil, ingesterr.NewSourceError("reading csv header "+path, err)
		}
		header = colnames.Dedupe(foldHeader(rec))
	}

	return &reader{csv: cr, header: header}, nil
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

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (r *reader) Next(ctx context.Context) (pipeline.RawRow, bool, error) {
	for {
		rec, err := r.csv.Read()
		if err == io.EOF {
			return pipeline.RawRow{}, false, nil
		}
		if err != nil {
			return pipeline.RawRow{}, false, ingesterr.NewSourceError("parsing csv record", err)
		}
		if blank(rec) {
			continue
		}
		if r.hasLast && sameRecord(r.lastRec, rec) {
			continue
		}
		r.lastRec = append([]string(nil), rec...)
		r.hasLast = true
		return toRawRow(r.header, rec), true, nil
	}
}

// sameRecord reports whether two records hold identical cells in the
// same order, used to suppress a row that exactly repeats the
// previously yielded one.
func sameRecord(a, b []string) bool {
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
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func toRawRow(header []string, rec []string) pipeline.RawRow {
	n := len(rec)
	if len(header) < n {
		n = len(header)
	}
	keys := make([]string, n)
	values := make(map[string]string, n)
	for i := 0; i < n; i++ {
		keys[i] = header[i]
		values[header[i]] = rec[i]
	}
	return pipeline.NewRawRow(keys, values)
}
